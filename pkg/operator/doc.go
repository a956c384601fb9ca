// Package operator drives the three web surfaces a design run touches.
//
// The chat operator (GPTOperator, with APIAnalyzer as the headless
// alternative) submits the analysis prompt plus reference images and
// captures the structured response. The editor operator (AuraOperator)
// turns a design-DNA or feedback prompt into a generated page and
// exports its HTML and a full-page screenshot. The variants operator
// (VariantOperator) fans a prompt out into multiple generated versions
// and captures each one's shared page.
//
// All operators work against an already navigated browser.Session and
// persist their artifacts under the step directory passed in their
// options, so a run stays inspectable even when a round fails halfway.
package operator
