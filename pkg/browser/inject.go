package browser

import (
	"context"
	"fmt"
)

// pushEchoPrefix is the first console argument emitted by the injected
// wrapper for every intercepted push. The subscriber keys on it to tell
// wrapper echoes apart from the page's own console output.
const pushEchoPrefix = "DataLayer Event Captured:"

// PushEchoPrefix returns the marker string the injected wrapper prints
// before each intercepted push.
func PushEchoPrefix() string {
	return pushEchoPrefix
}

// pushMonitorScript wraps window.dataLayer.push so every invocation is
// timestamped, appended to an in-page capture buffer, and echoed to the
// console, while the original queueing behavior is preserved. The guard
// flag makes repeated injection a no-op: the wrap happens exactly once
// per page, never chaining onto itself.
const pushMonitorScript = `(function() {
  if (window.__tagwatchWrapped) {
    return 'already-wrapped';
  }
  if (typeof window.dataLayer === 'undefined') {
    window.dataLayer = [];
  }
  window.__tagwatchCaptured = [];
  var originalPush = window.dataLayer.push;
  window.dataLayer.push = function() {
    if (typeof originalPush === 'function') {
      originalPush.apply(window.dataLayer, arguments);
    } else {
      Array.prototype.push.apply(window.dataLayer, arguments);
    }
    for (var i = 0; i < arguments.length; i++) {
      var entry = { data: arguments[i], timestamp: Date.now() };
      window.__tagwatchCaptured.push(entry);
      try {
        console.log('DataLayer Event Captured:', JSON.stringify(entry));
      } catch (e) {
        console.log('DataLayer Event Captured:', '{"data":null,"timestamp":' + entry.timestamp + '}');
      }
    }
    return window.dataLayer.length;
  };
  window.__tagwatchWrapped = true;
  return 'wrapped';
})()`

// Snapshot expressions read at session end. Both yield an array even
// when the page never defined the underlying globals.
const (
	dataLayerSnapshotExpr     = `window.dataLayer || []`
	captureBufferSnapshotExpr = `window.__tagwatchCaptured || []`
)

// InjectPushMonitor installs the dataLayer.push wrapper into the
// session's current page. Calling it again on the same page is a no-op.
func InjectPushMonitor(ctx context.Context, s Session) error {
	if err := s.Evaluate(ctx, pushMonitorScript, nil); err != nil {
		return fmt.Errorf("injecting push monitor: %w", err)
	}
	return nil
}

// SnapshotDataLayer reads the page's full dataLayer array.
func SnapshotDataLayer(ctx context.Context, s Session, out any) error {
	if err := s.Evaluate(ctx, dataLayerSnapshotExpr, out); err != nil {
		return fmt.Errorf("reading dataLayer snapshot: %w", err)
	}
	return nil
}

// SnapshotCaptureBuffer reads the injected wrapper's capture buffer.
func SnapshotCaptureBuffer(ctx context.Context, s Session, out any) error {
	if err := s.Evaluate(ctx, captureBufferSnapshotExpr, out); err != nil {
		return fmt.Errorf("reading capture buffer snapshot: %w", err)
	}
	return nil
}
