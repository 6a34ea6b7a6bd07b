package tool

import (
	"context"
	"errors"
	"testing"

	"github.com/hupe1980/intentmesh/core"
	"github.com/hupe1980/intentmesh/internal/util"
	"github.com/stretchr/testify/assert"
)

// Interface compliance (compile-time assertion)
var _ core.Capability = (*FunctionCapability)(nil)

// -------------------- Schema & Validation Tests --------------------

type sampleArgs struct {
	To      string  `json:"to" description:"Recipient address"`
	Subject string  `json:"subject" description:"Subject line"`
	CC      *string `json:"cc" description:"Optional CC"`
	Body    string  `json:"body,omitempty" description:"Omit empty field"`
}

func TestCreateSchema(t *testing.T) {
	schema := util.CreateSchema(sampleArgs{})
	props, ok := schema["properties"].(map[string]any)
	assert.True(t, ok)
	assert.Contains(t, props, "to")
	assert.Contains(t, props, "subject")
	assert.Contains(t, props, "cc")
	assert.Contains(t, props, "body")
	// Required only includes non-pointer, non-omitempty exported fields
	req, _ := schema["required"].([]string)
	assert.ElementsMatch(t, []string{"to", "subject"}, req)
}

func TestValidateParameters(t *testing.T) {
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"to": map[string]any{"type": "string"},
		},
		// Use []any to mirror JSON decoded schema shape
		"required": []any{"to"},
	}

	assert.NoError(t, util.ValidateParameters(map[string]any{"to": "bob@example.com"}, schema))

	err := util.ValidateParameters(map[string]any{}, schema)
	assert.Error(t, err)
	vErr, ok := err.(*core.ValidationError)
	assert.True(t, ok, "expected *core.ValidationError, got %T", err)
	assert.Equal(t, "to", vErr.Field)

	err = util.ValidateParameters(map[string]any{"to": 42}, schema)
	assert.Error(t, err)
	vErr, ok = err.(*core.ValidationError)
	assert.True(t, ok)
	assert.Contains(t, vErr.Message, "expected type string")
}

// -------------------- FunctionCapability Tests --------------------

func echoParams() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"text": map[string]any{"type": "string"},
		},
		"required": []string{"text"},
	}
}

func TestFunctionCapability_PreviewAndInvoke(t *testing.T) {
	invoked := 0
	cap := NewFunctionCapability("echo", "Echo text", "demo", core.RiskLow, echoParams(),
		func(_ context.Context, args map[string]any) (*core.CapabilityResult, error) {
			return &core.CapabilityResult{Payload: "preview:" + args["text"].(string)}, nil
		},
		func(_ context.Context, args map[string]any) (*core.CapabilityResult, error) {
			invoked++
			return &core.CapabilityResult{Payload: "invoke:" + args["text"].(string)}, nil
		},
	)

	res, err := cap.Preview(context.Background(), map[string]any{"text": "hi"})
	assert.NoError(t, err)
	assert.Equal(t, "preview:hi", res.Payload)
	assert.Zero(t, invoked, "preview must never run the committing function")

	res, err = cap.Invoke(context.Background(), map[string]any{"text": "hi"})
	assert.NoError(t, err)
	assert.Equal(t, "invoke:hi", res.Payload)
	assert.Equal(t, 1, invoked)
}

func TestFunctionCapability_ReadOnlyInvokeFallsBackToPreview(t *testing.T) {
	cap := NewFunctionCapability("lookup", "Lookup", "demo", core.RiskReadOnly, echoParams(),
		func(_ context.Context, _ map[string]any) (*core.CapabilityResult, error) {
			return &core.CapabilityResult{Payload: "found"}, nil
		},
		nil,
	)
	res, err := cap.Invoke(context.Background(), map[string]any{"text": "x"})
	assert.NoError(t, err)
	assert.Equal(t, "found", res.Payload)
}

func TestFunctionCapability_ErrorWrapping(t *testing.T) {
	cap := NewFunctionCapability("fail", "Fails", "demo", core.RiskLow, echoParams(),
		func(_ context.Context, _ map[string]any) (*core.CapabilityResult, error) {
			return nil, errors.New("boom")
		},
		nil,
	)
	_, err := cap.Preview(context.Background(), nil)
	assert.Error(t, err)
	capErr, ok := err.(*CapabilityError)
	assert.True(t, ok)
	assert.Equal(t, "EXECUTION_ERROR", capErr.Code)
	assert.Equal(t, "fail", capErr.Capability)

	// A CapabilityError from the function passes through untouched.
	custom := NewCapabilityError("fail2", "nope", "CUSTOM")
	cap2 := NewFunctionCapability("fail2", "Fails", "demo", core.RiskLow, echoParams(),
		func(_ context.Context, _ map[string]any) (*core.CapabilityResult, error) {
			return nil, custom
		},
		nil,
	)
	_, err = cap2.Preview(context.Background(), nil)
	assert.Same(t, custom, err)
}

// -------------------- Registry Tests --------------------

func readOnlyCap(name string) *FunctionCapability {
	return NewFunctionCapability(name, "Lookup "+name, "contacts", core.RiskReadOnly, echoParams(),
		func(_ context.Context, _ map[string]any) (*core.CapabilityResult, error) {
			return &core.CapabilityResult{}, nil
		},
		nil,
	)
}

func TestRegistry_RegisterAndLookup(t *testing.T) {
	r := NewRegistry()
	assert.NoError(t, r.Register(readOnlyCap("find_contact")))
	assert.Error(t, r.Register(readOnlyCap("find_contact")), "duplicate names must be rejected")

	_, ok := r.Lookup("find_contact")
	assert.True(t, ok)
	_, ok = r.Lookup("ghost")
	assert.False(t, ok)
}

func TestRegistry_ListIsSorted(t *testing.T) {
	r := NewRegistry()
	for _, name := range []string{"zeta", "alpha", "mid"} {
		assert.NoError(t, r.Register(readOnlyCap(name)))
	}
	list := r.List()
	assert.Len(t, list, 3)
	assert.Equal(t, "alpha", list[0].Name())
	assert.Equal(t, "mid", list[1].Name())
	assert.Equal(t, "zeta", list[2].Name())
}

func TestRegistry_ResolverMustBeReadOnly(t *testing.T) {
	r := NewRegistry()
	assert.NoError(t, r.Register(readOnlyCap("find_contact")))
	mutating := NewFunctionCapability("send_email", "Send", "email", core.RiskHigh, echoParams(),
		func(_ context.Context, _ map[string]any) (*core.CapabilityResult, error) {
			return &core.CapabilityResult{}, nil
		},
		func(_ context.Context, _ map[string]any) (*core.CapabilityResult, error) {
			return &core.CapabilityResult{}, nil
		},
	)
	assert.NoError(t, r.Register(mutating))

	assert.Error(t, r.RegisterResolver("contact", "send_email"), "mutating resolver must be rejected")
	assert.Error(t, r.RegisterResolver("contact", "ghost"))
	assert.NoError(t, r.RegisterResolver("contact", "find_contact"))

	resolver, ok := r.ResolverFor("contact")
	assert.True(t, ok)
	assert.Equal(t, "find_contact", resolver.Name())
	_, ok = r.ResolverFor("calendar-event")
	assert.False(t, ok)
}

func TestRegistry_ValidateArgs(t *testing.T) {
	r := NewRegistry()
	assert.NoError(t, r.Register(readOnlyCap("find_contact")))

	assert.NoError(t, r.ValidateArgs("find_contact", map[string]any{"text": "acme"}))
	assert.Error(t, r.ValidateArgs("find_contact", map[string]any{}))

	err := r.ValidateArgs("ghost", nil)
	assert.Error(t, err)
	vErr, ok := err.(*core.ValidationError)
	assert.True(t, ok)
	assert.Equal(t, "capability", vErr.Field)
}

// -------------------- Verification Capability Tests --------------------

func TestVerificationCapability(t *testing.T) {
	r := NewRegistry()
	send := NewFunctionCapability("send_email", "Send an email", "email", core.RiskHigh,
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"to":   map[string]any{"type": "string"},
				"body": map[string]any{"type": "string"},
			},
			"required": []string{"to"},
		},
		func(_ context.Context, _ map[string]any) (*core.CapabilityResult, error) {
			return &core.CapabilityResult{}, nil
		},
		nil,
	)
	assert.NoError(t, r.Register(send))

	verify := NewVerificationCapability(r)
	assert.Equal(t, core.RiskReadOnly, verify.Risk())

	// Consistent step passes.
	res, err := verify.Preview(context.Background(), map[string]any{
		"capability": "send_email",
		"args":       map[string]any{"to": "bob@example.com", "body": "hi"},
	})
	assert.NoError(t, err)
	assert.NotNil(t, res.Payload)

	// Empty recipient fails.
	_, err = verify.Preview(context.Background(), map[string]any{
		"capability": "send_email",
		"args":       map[string]any{"to": "  "},
	})
	assert.Error(t, err)
	capErr, ok := err.(*CapabilityError)
	assert.True(t, ok)
	assert.Equal(t, "VERIFICATION_FAILED", capErr.Code)

	// Schema violation fails.
	_, err = verify.Preview(context.Background(), map[string]any{
		"capability": "send_email",
		"args":       map[string]any{},
	})
	assert.Error(t, err)

	// Unparseable time fails.
	_, err = verify.Preview(context.Background(), map[string]any{
		"capability": "send_email",
		"args":       map[string]any{"to": "bob@example.com", "remind_at": "tomorrowish"},
	})
	assert.Error(t, err)
}

func TestCapabilityErrorFormatting(t *testing.T) {
	err := NewCapabilityError("demo", "something failed", "E123")
	assert.Contains(t, err.Error(), "E123")
	assert.Contains(t, err.Error(), "demo")
}
