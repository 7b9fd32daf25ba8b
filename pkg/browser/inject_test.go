package browser

import (
	"context"
	"strings"
	"testing"
)

// scriptedSession records evaluated expressions for injector tests.
type scriptedSession struct {
	evaluated []string
	failEval  error
}

func (s *scriptedSession) Navigate(context.Context, string) error { return nil }

func (s *scriptedSession) Evaluate(_ context.Context, expr string, _ any) error {
	if s.failEval != nil {
		return s.failEval
	}
	s.evaluated = append(s.evaluated, expr)
	return nil
}

func (s *scriptedSession) DrainLog(LogChannel) ([]LogEntry, error) { return nil, nil }
func (s *scriptedSession) HasLogChannel(LogChannel) bool           { return false }
func (s *scriptedSession) SubscribeConsole(func(ConsoleEvent)) error {
	return nil
}
func (s *scriptedSession) Close() error { return nil }

func TestPushMonitorScript_WrapsExactlyOnce(t *testing.T) {
	// The guard flag is what keeps a second injection from chaining a
	// second wrapper onto the first.
	if !strings.Contains(pushMonitorScript, "window.__tagwatchWrapped") {
		t.Error("script missing the wrap guard flag")
	}
	guardCheck := strings.Index(pushMonitorScript, "if (window.__tagwatchWrapped)")
	wrapAssign := strings.Index(pushMonitorScript, "window.dataLayer.push = function")
	if guardCheck == -1 || wrapAssign == -1 || guardCheck > wrapAssign {
		t.Error("guard must be checked before the push function is replaced")
	}
}

func TestPushMonitorScript_PreservesOriginalPush(t *testing.T) {
	if !strings.Contains(pushMonitorScript, "originalPush.apply(window.dataLayer, arguments)") {
		t.Error("script must invoke the original push")
	}
	if !strings.Contains(pushMonitorScript, "Array.prototype.push.apply") {
		t.Error("script must fall back to the array push when the queue was created empty")
	}
	if !strings.Contains(pushMonitorScript, "window.dataLayer = []") {
		t.Error("script must create the queue when it does not exist")
	}
}

func TestPushMonitorScript_EchoesWithPrefix(t *testing.T) {
	if !strings.Contains(pushMonitorScript, pushEchoPrefix) {
		t.Error("script must echo captures with the marker prefix")
	}
}

func TestInjectPushMonitor(t *testing.T) {
	s := &scriptedSession{}
	if err := InjectPushMonitor(context.Background(), s); err != nil {
		t.Fatalf("InjectPushMonitor() error = %v", err)
	}
	if len(s.evaluated) != 1 || s.evaluated[0] != pushMonitorScript {
		t.Error("injector should evaluate exactly the monitor script")
	}
}

func TestSnapshotExpressions_ToleratesMissingGlobals(t *testing.T) {
	// Both snapshot reads must yield an array even when the page never
	// defined the globals.
	for _, expr := range []string{dataLayerSnapshotExpr, captureBufferSnapshotExpr} {
		if !strings.Contains(expr, "|| []") {
			t.Errorf("snapshot expression %q must default to an empty array", expr)
		}
	}
}
