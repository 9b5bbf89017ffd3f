package view

// Scripts run against the hosted page on every load. All of them receive
// their data JSON-encoded through automation.WrapScript, nothing is
// interpolated into code.

type loginProbe struct {
	LoggedIn bool   `json:"loggedIn"`
	Source   string `json:"source"`
}

// best effort, the heuristics chase a page we do not control
const loginProbeScript = `(function(){
try {
	var probe = {loggedIn: false, source: 'none'};
	if (document.querySelector('[data-test-id="user-menu"], [data-testid="user-avatar"], [aria-label*="Account"]')) {
		probe.loggedIn = true;
		probe.source = 'dom';
	}
	if (!probe.loggedIn && window.localStorage) {
		for (var i = 0; i < localStorage.length; i++) {
			var key = localStorage.key(i).toLowerCase();
			if (key.indexOf('session') >= 0 || key.indexOf('auth') >= 0) {
				probe.loggedIn = true;
				probe.source = 'localStorage';
				break;
			}
		}
	}
	if (!probe.loggedIn && /sess|auth|token/i.test(document.cookie)) {
		probe.loggedIn = true;
		probe.source = 'cookie';
	}
	return probe;
} catch (e) {
	return {loggedIn: false, source: 'error: ' + String(e)};
}
})()`

type stylesheetArgs struct {
	ID  string `json:"id"`
	CSS string `json:"css"`
}

const stylesheetBody = `
var style = document.getElementById(args.id);
if (!style) {
	style = document.createElement('style');
	style.id = args.id;
	document.documentElement.appendChild(style);
}
style.textContent = args.css;
return true;`

const darkStylesheetID = "mediashell-dark"

const darkThemeCSS = `
:root { color-scheme: dark; }
html, body { background-color: #121212 !important; }
body { filter: invert(0); }
header, nav, main, aside, footer { background-color: #121212 !important; color: #e0e0e0 !important; }
`

type overlayArgs struct {
	Bridge    string `json:"bridge"`
	BarHeight int    `json:"barHeight"`
	Dark      bool   `json:"dark"`
}

// the transport bar overlay: fixed strip above the page, buttons call the
// loopback bridge
const overlayBody = `
var bar = document.getElementById('mediashell-bar');
if (!bar) {
	bar = document.createElement('div');
	bar.id = 'mediashell-bar';
	var ops = [['previous', '⏮'], ['playpause', '⏯'], ['next', '⏭'], ['darkmode', '◐'], ['miniplayer', '▭']];
	for (var i = 0; i < ops.length; i++) {
		(function(op, label) {
			var btn = document.createElement('button');
			btn.textContent = label;
			btn.style.cssText = 'min-width:36px;height:28px;cursor:pointer;border:none;border-radius:4px;';
			btn.addEventListener('click', function() {
				fetch('http://' + args.bridge + '/api/' + op, {method: 'POST'});
			});
			bar.appendChild(btn);
		})(ops[i][0], ops[i][1]);
	}
	document.documentElement.appendChild(bar);
}
bar.style.cssText = 'position:fixed;top:0;left:0;right:0;height:' + args.barHeight +
	'px;z-index:2147483647;display:flex;align-items:center;gap:8px;padding:0 12px;font:14px sans-serif;background:' +
	(args.dark ? '#1c1c1c' : '#f5f5f5') + ';color:' + (args.dark ? '#eee' : '#111') + ';';
document.body.style.marginTop = args.barHeight + 'px';
return true;`

// suppresses the recoverable lyrics subsystem errors before they become
// unhandled page errors
const errorGuardScript = `(function(){
if (window.__mediashellErrorGuard) {
	return true;
}
window.__mediashellErrorGuard = true;
var suppressed = function(message, source) {
	return /lyrics/i.test(String(message || '') + ' ' + String(source || ''));
};
window.addEventListener('error', function(evt) {
	if (suppressed(evt.message, evt.filename)) {
		evt.preventDefault();
	}
}, true);
window.addEventListener('unhandledrejection', function(evt) {
	var reason = evt.reason && (evt.reason.message || evt.reason);
	if (suppressed(reason, '')) {
		evt.preventDefault();
	}
});
return true;
})()`
