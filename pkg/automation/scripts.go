package automation

import (
	"encoding/json"
	"fmt"

	"emperror.dev/errors"
)

// WrapScript wraps a fixed function body into an IIFE receiving its data as
// a single JSON-encoded argument. Values never get interpolated into code,
// json.Marshal does all the escaping.
func WrapScript(body string, args interface{}) (string, error) {
	data, err := json.Marshal(args)
	if err != nil {
		return "", errors.Wrapf(err, "cannot marshal script arguments: %v", args)
	}
	return fmt.Sprintf("(function(args){%s})(%s)", body, string(data)), nil
}

type clickArgs struct {
	Selectors []string `json:"selectors"`
}

type toggleArgs struct {
	Selectors []string `json:"selectors"`
	Labels    []string `json:"labels"`
}

type diagnosticsArgs struct {
	Pattern       string   `json:"pattern"`
	ListSelectors []string `json:"listSelectors"`
}

type clickResult struct {
	Clicked  bool   `json:"clicked"`
	Selector string `json:"selector,omitempty"`
}

// first matching selector wins, the rest of the list is not consulted
const clickBody = `
for (var i = 0; i < args.selectors.length; i++) {
	var el = document.querySelector(args.selectors[i]);
	if (el) {
		el.click();
		return {clicked: true, selector: args.selectors[i]};
	}
}
return {clicked: false};`

// clicks the toggle only when its accessible label says the player is
// paused, so a track already playing is not paused again
const toggleIfPausedBody = `
for (var i = 0; i < args.selectors.length; i++) {
	var el = document.querySelector(args.selectors[i]);
	if (!el) {
		continue;
	}
	var label = (el.getAttribute('aria-label') || el.getAttribute('title') || '').toLowerCase();
	for (var j = 0; j < args.labels.length; j++) {
		if (label.indexOf(args.labels[j]) >= 0) {
			el.click();
			return {clicked: true, selector: args.selectors[i]};
		}
	}
	return {clicked: false, selector: args.selectors[i]};
}
return {clicked: false};`

const diagnosticsBody = `
var controls = document.querySelectorAll('button, [role="button"]');
var re = new RegExp(args.pattern, 'i');
var matching = 0;
for (var i = 0; i < controls.length; i++) {
	var el = controls[i];
	var label = (el.getAttribute('aria-label') || '') + ' ' + (el.getAttribute('title') || '') + ' ' + (el.textContent || '');
	if (re.test(label)) {
		matching++;
	}
}
var listItems = document.querySelectorAll(args.listSelectors.join(','));
return {
	url: String(window.location.href),
	readyState: String(document.readyState),
	title: String(document.title),
	totalCandidates: controls.length,
	matchingCandidates: matching,
	listItemCount: listItems.length
};`

const documentReadyScript = `(function(){return document.readyState;})()`

const spacebarScript = `(function(){
var evt = new KeyboardEvent('keydown', {key: ' ', code: 'Space', keyCode: 32, which: 32, bubbles: true});
document.dispatchEvent(evt);
return true;
})()`
