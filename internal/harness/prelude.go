package harness

// preludeJS installs the execution hook before any document script runs.
// It records the first sink call and tracks timer ids so a case cannot
// leak intervals into the next one sharing the page.
const preludeJS = `(function () {
  if (window.__xssbench) { return; }
  var state = { executed: false, details: '', timers: [] };
  function hit(kind, args) {
    if (state.executed) { return; }
    state.executed = true;
    try {
      state.details = kind + ':' + Array.prototype.join.call(args, ',');
    } catch (e) {
      state.details = kind;
    }
  }
  window.alert = function () { hit('alert', arguments); };
  window.confirm = function () { hit('confirm', arguments); return true; };
  window.prompt = function () { hit('prompt', arguments); return ''; };
  window.print = function () { hit('print', arguments); };
  var origSetTimeout = window.setTimeout;
  var origSetInterval = window.setInterval;
  window.setTimeout = function (fn, ms) {
    var id = origSetTimeout(fn, ms);
    state.timers.push(id);
    return id;
  };
  window.setInterval = function (fn, ms) {
    var id = origSetInterval(fn, ms);
    state.timers.push(id);
    return id;
  };
  state.cleanup = function () {
    for (var i = 0; i < state.timers.length; i++) {
      try { clearTimeout(state.timers[i]); } catch (e) {}
      try { clearInterval(state.timers[i]); } catch (e) {}
    }
    state.timers = [];
  };
  window.__xssbench = state;
})();`
