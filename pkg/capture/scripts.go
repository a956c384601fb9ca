package capture

// JavaScript snippets evaluated in the page (or in the content iframe's frame
// when one owns the scrollable content). The elected scroll root is marked with
// a data-pw-scroll-root attribute so every later snippet can resolve it in O(1);
// when the window itself scrolls, no marker is set.

// jsFindAndMarkScrollRoot picks the scroll root with the largest scrollable
// range (window vs best inner element) and marks it.
const jsFindAndMarkScrollRoot = `
() => {
  const vh = window.innerHeight;
  const docH = Math.max(
    document.body.scrollHeight,
    document.documentElement.scrollHeight,
    document.body.offsetHeight || 0,
    document.documentElement.offsetHeight || 0
  );
  const windowMax = Math.max(0, docH - vh);
  let bestEl = null;
  let bestMax = windowMax;

  document.querySelectorAll('[data-pw-scroll-root]').forEach(el => el.removeAttribute('data-pw-scroll-root'));
  for (const el of document.querySelectorAll('*')) {
    const style = window.getComputedStyle(el);
    const oy = style.overflowY || style.overflow;
    if ((oy === 'auto' || oy === 'scroll') && el.scrollHeight > el.clientHeight) {
      const elMax = el.scrollHeight - el.clientHeight;
      if (elMax > bestMax) {
        bestMax = elMax;
        bestEl = el;
      }
    }
  }
  if (bestEl) {
    bestEl.setAttribute('data-pw-scroll-root', '1');
  }
  return { max: bestMax, useWindow: !bestEl };
}`

// jsScrollTo writes the scroll offset of the marked root (or the window).
const jsScrollTo = `
(y) => {
  const el = document.querySelector('[data-pw-scroll-root="1"]');
  if (el) el.scrollTop = y;
  else window.scrollTo(0, y);
}`

// jsGetScrollState is the single source of truth for the active root's current
// position and maximum scrollable distance, both in CSS pixels.
const jsGetScrollState = `
() => {
  const el = document.querySelector('[data-pw-scroll-root="1"]');
  if (el) {
    const max = Math.max(0, el.scrollHeight - el.clientHeight);
    return { position: el.scrollTop, max };
  }
  const docH = Math.max(
    document.body.scrollHeight,
    document.documentElement.scrollHeight,
    document.body.offsetHeight || 0,
    document.documentElement.offsetHeight || 0
  );
  const max = Math.max(0, docH - window.innerHeight);
  return { position: window.scrollY || window.pageYOffset || 0, max };
}`

// jsGetScrollableStates snapshots the scroll offset of the window and of every
// scrollable element, in stable DOM order, for the behavioral probe.
const jsGetScrollableStates = `
() => {
  const result = [{ type: 'window', scrollTop: window.scrollY || window.pageYOffset || 0 }];
  const scrollable = Array.from(document.querySelectorAll('*')).filter(el => {
    const style = window.getComputedStyle(el);
    const oy = style.overflowY || style.overflow;
    return (oy === 'auto' || oy === 'scroll') && el.scrollHeight > el.clientHeight;
  });
  scrollable.forEach((el, i) => result.push({ type: 'element', index: i, scrollTop: el.scrollTop }));
  return result;
}`

// jsMarkScrollRootByObservation marks the root the probe saw moving. The index
// refers to the same stable ordering jsGetScrollableStates produced.
const jsMarkScrollRootByObservation = `
(arg) => {
  document.querySelectorAll('[data-pw-scroll-root]').forEach(el => el.removeAttribute('data-pw-scroll-root'));
  if (arg.type === 'window') return;
  const scrollable = Array.from(document.querySelectorAll('*')).filter(el => {
    const style = window.getComputedStyle(el);
    const oy = style.overflowY || style.overflow;
    return (oy === 'auto' || oy === 'scroll') && el.scrollHeight > el.clientHeight;
  });
  const el = scrollable[arg.index];
  if (el) el.setAttribute('data-pw-scroll-root', '1');
}`

// jsClearScrollRootMarker removes every marker, falling back to window scrolling.
const jsClearScrollRootMarker = `
() => document.querySelectorAll('[data-pw-scroll-root]').forEach(el => el.removeAttribute('data-pw-scroll-root'))`

// jsDisableAnimations freezes CSS transitions/animations and forces backgrounds
// to scroll with content so repeated screenshots line up across tiles.
const jsDisableAnimations = `
() => {
  const style = document.createElement('style');
  style.id = '__pw_no_anim';
  style.textContent = [
    '*, *::before, *::after { transition: none !important; animation: none !important; }',
    '*, *::before, *::after { background-attachment: scroll !important; }'
  ].join('\n');
  document.head.appendChild(style);
}`

// jsRemoveAnimationFreeze undoes jsDisableAnimations.
const jsRemoveAnimationFreeze = `
() => { const s = document.getElementById('__pw_no_anim'); if (s) s.remove(); }`

// jsHideFixed hides fixed/sticky elements so chrome such as a top navigation
// bar does not repeat in every tile after the first.
const jsHideFixed = `
() => {
  for (const el of document.querySelectorAll('*')) {
    const style = window.getComputedStyle(el);
    if (style.position === 'fixed' || style.position === 'sticky') {
      el.style.visibility = 'hidden';
    }
  }
}`

// jsShowFixed restores anything jsHideFixed hid.
const jsShowFixed = `
() => {
  for (const el of document.querySelectorAll('*')) {
    if (el.style.visibility === 'hidden') {
      el.style.visibility = '';
    }
  }
}`

// jsFindTallIframe returns the index of the first iframe whose document is
// taller than the window, or null. Cross-origin frames throw and are skipped.
const jsFindTallIframe = `
() => {
  const iframes = document.querySelectorAll('iframe');
  for (let i = 0; i < iframes.length; i++) {
    try {
      const fd = iframes[i].contentDocument;
      if (fd && fd.documentElement.scrollHeight > window.innerHeight) {
        return { index: i, docH: fd.documentElement.scrollHeight };
      }
    } catch(e) {}
  }
  return null;
}`

// jsHideOuterOverlays hides same-page overlays (badges, floating widgets) that
// live outside the content iframe, recording their prior inline visibility so
// jsRestoreOuterOverlays can put it back.
const jsHideOuterOverlays = `
() => {
  const iframe = document.querySelector('iframe');
  for (const el of document.querySelectorAll('*')) {
    if (el === iframe || el.contains(iframe) || iframe.contains(el)) continue;
    if (el.tagName === 'SCRIPT' || el.tagName === 'STYLE' || el.tagName === 'LINK' || el.tagName === 'HEAD') continue;
    const style = window.getComputedStyle(el);
    if (style.position === 'fixed' || style.position === 'absolute' || style.position === 'sticky') {
      el.setAttribute('data-pw-hidden-overlay', el.style.visibility || '');
      el.style.visibility = 'hidden';
    }
  }
}`

// jsRestoreOuterOverlays reverses jsHideOuterOverlays.
const jsRestoreOuterOverlays = `
() => {
  for (const el of document.querySelectorAll('[data-pw-hidden-overlay]')) {
    el.style.visibility = el.getAttribute('data-pw-hidden-overlay') || '';
    el.removeAttribute('data-pw-hidden-overlay');
  }
}`
