package browser

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

// mirrorConsole forwards console calls and uncaught exceptions of the tab
// to logger. It is diagnostic output only.
func mirrorConsole(ctx context.Context, logger *zap.Logger) {
	chromedp.ListenTarget(ctx, func(ev interface{}) {
		switch ev := ev.(type) {
		case *runtime.EventConsoleAPICalled:
			args := make([]string, 0, len(ev.Args))
			for _, arg := range ev.Args {
				args = append(args, remoteObjectText(arg))
			}
			logger.Info("Browser console",
				zap.String("type", string(ev.Type)),
				zap.String("text", strings.Join(args, " ")),
			)
		case *runtime.EventExceptionThrown:
			logger.Warn("Browser error", zap.String("text", exceptionText(ev.ExceptionDetails)))
		}
	})
}

func remoteObjectText(obj *runtime.RemoteObject) string {
	if obj == nil {
		return ""
	}
	if len(obj.Value) > 0 {
		var s string
		if err := json.Unmarshal([]byte(obj.Value), &s); err == nil {
			return s
		}
		return string(obj.Value)
	}
	if obj.Description != "" {
		return obj.Description
	}
	return string(obj.Type)
}

func exceptionText(details *runtime.ExceptionDetails) string {
	if details == nil {
		return ""
	}
	if details.Exception != nil && details.Exception.Description != "" {
		return details.Text + " " + details.Exception.Description
	}
	return details.Text
}
