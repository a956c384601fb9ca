// Package capture produces full-height screenshots of pages whose content is
// taller than the viewport, including pages the built-in full-page screenshot
// cannot handle: inner scroll containers, content iframes, scroll-triggered
// animations, fixed/sticky chrome, and non-integer device pixel ratios.
//
// # Pipeline
//
// One capture runs five stages in order, with no concurrency:
//
//  1. Detection: elect the DOM node (or the window) that actually owns
//     scrolling. A geometric pass ranks everything with a scrollable range;
//     a behavioral pass then wheels the page and keeps whichever candidate
//     really moved, because geometry alone is routinely wrong on app-like
//     front-ends.
//  2. Stabilization: visit the bottom once so scroll-linked animations fire,
//     freeze CSS animation/transitions, pin background-attachment, and return
//     to the top.
//  3. Tiling: advance just under one viewport per step with synthetic wheel
//     events, snapping to the exact target with a programmatic scroll, and
//     screenshot at every stop. Fixed/sticky elements are hidden after the
//     first tile so they appear once, like a user saw them.
//  4. Stitching: crop each tile's overlap band and paste contiguously,
//     scaling all offsets from CSS space to bitmap space.
//  5. Restoration: revert every DOM mutation, unconditionally.
//
// Every loop carries a hard bound so a misbehaving page degrades the output
// instead of hanging the call, and a capture that cannot tile at all still
// writes a plain single screenshot.
//
// # Example
//
//	path, err := capture.FullPage(page, filepath.Join(dir, "full.png"),
//	    capture.WithSettleMs(300))
package capture
