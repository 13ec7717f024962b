package protocol

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/cgast/affordkit/pkg/affordance"
	"github.com/cgast/affordkit/pkg/generator"
	"github.com/cgast/affordkit/pkg/guard"
	"github.com/cgast/affordkit/pkg/store"
)

// Services are the components the standard methods operate on. Nil fields
// leave the matching methods unregistered.
type Services struct {
	Engine   *guard.Engine
	Registry *affordance.Registry
	Store    store.Store
}

// RegisterMethods installs the guard and widget methods.
func RegisterMethods(h *Handler, s Services) {
	if s.Engine != nil {
		h.Register(MethodGuardRun, guardRun(s.Engine))
	}
	if s.Store != nil {
		h.Register(MethodGuardLast, guardLast(s.Store))
	}
	if s.Registry != nil {
		h.Register(MethodWidgetsList, widgetsList(s.Registry))
		h.Register(MethodWidgetsDescribe, widgetsDescribe(s.Registry))
		h.Register(MethodWidgetsMatch, widgetsMatch(s.Registry))
	}
}

func guardRun(e *guard.Engine) HandlerFunc {
	return func(ctx context.Context, _ json.RawMessage) (any, *Error) {
		report, err := e.Run(ctx)
		if errors.Is(err, generator.ErrGeneratorUnavailable) {
			return nil, &Error{Code: CodeGeneratorUnavailable, Message: err.Error(), Data: report.Lines()}
		}
		res := GuardRunResult{Pass: report.Pass, Lines: report.Lines(), Report: report}
		if err != nil {
			// the run completed; only its record was lost
			res.StoreError = err.Error()
		}
		return res, nil
	}
}

func guardLast(s store.Store) HandlerFunc {
	return func(context.Context, json.RawMessage) (any, *Error) {
		rec, ok, err := store.LoadLastRun(s)
		if err != nil {
			return nil, &Error{Code: CodeStoreFailed, Message: err.Error()}
		}
		if !ok {
			return GuardLastResult{}, nil
		}
		return GuardLastResult{Recorded: true, At: rec.Time().UTC(), Pass: rec.Pass}, nil
	}
}

func widgetsList(r *affordance.Registry) HandlerFunc {
	return func(context.Context, json.RawMessage) (any, *Error) {
		widgets := r.All()
		out := make([]WidgetInfo, 0, len(widgets))
		for _, w := range widgets {
			out = append(out, widgetInfo(w))
		}
		return out, nil
	}
}

func widgetsDescribe(r *affordance.Registry) HandlerFunc {
	return func(_ context.Context, params json.RawMessage) (any, *Error) {
		p, rpcErr := ParseParams[WidgetsDescribeParams](params)
		if rpcErr != nil {
			return nil, rpcErr
		}
		kind := strings.TrimSpace(p.Kind)
		if kind == "" {
			return nil, &Error{Code: CodeInvalidParams, Message: "kind is required"}
		}
		d, err := r.Lookup(kind)
		if err != nil {
			return nil, &Error{Code: CodeWidgetNotFound, Message: err.Error()}
		}
		return widgetInfo(affordance.Widget{Kind: kind, Descriptor: d}), nil
	}
}

func widgetsMatch(r *affordance.Registry) HandlerFunc {
	return func(_ context.Context, params json.RawMessage) (any, *Error) {
		p, rpcErr := ParseParams[WidgetsMatchParams](params)
		if rpcErr != nil {
			return nil, rpcErr
		}
		matches := r.Match(affordance.Query{Capability: p.Capability, Context: p.Context, Goal: p.Goal})
		out := make([]WidgetInfo, 0, len(matches))
		for _, w := range matches {
			out = append(out, widgetInfo(w))
		}
		return out, nil
	}
}
