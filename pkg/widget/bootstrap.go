package widget

// bootstrapJS is the client bridge bootstrap embedded in every rendered
// widget document. It mirrors pkg/bridge: a single subscription to the
// host's full-snapshot broadcast, snapshot reads straight off the live host
// object, an explicit idle/rendered phase with a bounded polling fallback,
// and an optimistic write path where the host wins once it delivers.
const bootstrapJS = `(() => {
  const POLL_INTERVAL_MS = 100;
  const POLL_TIMEOUT_MS = 10000;

  const listeners = new Set();
  let phase = "idle";
  let pendingState;
  let hasPending = false;
  let pollTimer = null;
  let pollDeadline = 0;

  const live = () => {
    const host = window.openai;
    if (!host || host.toolOutput === undefined) return null;
    return {
      toolInput: host.toolInput ?? null,
      toolOutput: host.toolOutput ?? null,
      widgetState: host.widgetState ?? null,
      theme: host.theme ?? "light",
      displayMode: host.displayMode ?? "inline",
    };
  };

  const disposePoll = () => {
    if (pollTimer !== null) {
      clearInterval(pollTimer);
      pollTimer = null;
    }
  };

  const notify = () => {
    const snapshot = window.apphost.getSnapshot();
    listeners.forEach((fn) => fn(snapshot));
  };

  const deliver = () => {
    hasPending = false;
    pendingState = undefined;
    phase = "rendered";
    disposePoll();
    document.querySelectorAll(".apphost-skeleton").forEach((el) => {
      el.hidden = true;
      el.removeAttribute("aria-busy");
    });
    notify();
  };

  window.addEventListener("openai:set_globals", deliver);

  // Fallback for a broadcast that fired before this script attached.
  // Gives up silently after the bounded wait; the skeleton stays up.
  pollDeadline = Date.now() + POLL_TIMEOUT_MS;
  pollTimer = setInterval(() => {
    if (phase === "rendered" || Date.now() > pollDeadline) {
      disposePoll();
      return;
    }
    if (live() !== null) deliver();
  }, POLL_INTERVAL_MS);

  window.apphost = {
    subscribe(onChange) {
      listeners.add(onChange);
      return () => listeners.delete(onChange);
    },
    getSnapshot() {
      const snapshot = live();
      if (snapshot && hasPending) snapshot.widgetState = pendingState;
      return snapshot;
    },
    phase() {
      return phase;
    },
    setWidgetState(next) {
      const prev = this.getSnapshot()?.widgetState ?? null;
      const value = typeof next === "function" ? next(prev) : next;
      pendingState = value;
      hasPending = true;
      notify();
      return window.openai?.setWidgetState?.(value);
    },
  };

  // Preview hosts have no window.openai: hydrate from embedded sample data.
  const sample = document.getElementById("apphost-sample-data");
  if (!window.openai && sample) {
    window.openai = {
      toolInput: {},
      toolOutput: JSON.parse(sample.textContent),
      widgetState: null,
      theme: "light",
      displayMode: "inline",
    };
    deliver();
  }
})();`
