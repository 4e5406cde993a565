package agent

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/wirdbot/wirdbot/internal/provider"
)

func TestRouterForceKeywords(t *testing.T) {
	var resolved atomic.Int32
	r := NewRouter(func(model string) (provider.LLMProvider, string, error) {
		resolved.Add(1)
		return scripted(), model, nil
	}, "test/flash", "test/pro")

	cases := []struct {
		content     string
		wantModel   string
		wantComplex bool
	}{
		{"please use pro for this", "test/pro", true},
		{"think hard about it", "test/pro", true},
		{"use flash please", "test/flash", false},
		{"the fast model will do", "test/flash", false},
	}
	for _, c := range cases {
		model, complex := r.Pick(context.Background(), c.content)
		if model != c.wantModel || complex != c.wantComplex {
			t.Errorf("Pick(%q) = (%q, %t), want (%q, %t)", c.content, model, complex, c.wantModel, c.wantComplex)
		}
	}
	if resolved.Load() != 0 {
		t.Errorf("keyword routing called the classifier %d times", resolved.Load())
	}
}

func TestRouterShortMessageSkipsClassifier(t *testing.T) {
	var resolved atomic.Int32
	r := NewRouter(func(model string) (provider.LLMProvider, string, error) {
		resolved.Add(1)
		return scripted(), model, nil
	}, "test/flash", "test/pro")

	model, complex := r.Pick(context.Background(), "what page am I on?")
	if model != "test/flash" || complex {
		t.Errorf("short message routed to %q complex=%t", model, complex)
	}
	if resolved.Load() != 0 {
		t.Error("short message must not reach the classifier")
	}
}

func TestRouterClassifierComplex(t *testing.T) {
	prov := scripted(respStep(textResp("COMPLEX")))
	r := NewRouter(func(model string) (provider.LLMProvider, string, error) {
		return prov, "flash", nil
	}, "test/flash", "test/pro")

	long := strings.Repeat("walk me through the derivation step by step ", 4)
	model, complex := r.Pick(context.Background(), long)
	if model != "test/pro" || !complex {
		t.Fatalf("Pick = (%q, %t)", model, complex)
	}

	req := prov.request(0)
	if req.System != routerPrompt {
		t.Error("classifier must use the router prompt")
	}
	if req.Model != "flash" || req.MaxTokens != 8 || req.Temperature != 0 {
		t.Errorf("classifier request = model %q maxTokens %d temp %v", req.Model, req.MaxTokens, req.Temperature)
	}
	if !strings.HasPrefix(req.Messages[0].Content, "User Message: ") {
		t.Errorf("classifier message = %q", req.Messages[0].Content)
	}
}

func TestRouterClassifierVerdictParsing(t *testing.T) {
	long := strings.Repeat("some ordinary request text padding here ", 4)

	prov := scripted(respStep(textResp(" complex\n")))
	r := NewRouter(func(string) (provider.LLMProvider, string, error) { return prov, "flash", nil },
		"test/flash", "test/pro")
	if model, _ := r.Pick(context.Background(), long); model != "test/pro" {
		t.Errorf("case-insensitive verdict not honored: %q", model)
	}

	prov = scripted(respStep(textResp("SIMPLE")))
	r = NewRouter(func(string) (provider.LLMProvider, string, error) { return prov, "flash", nil },
		"test/flash", "test/pro")
	if model, complex := r.Pick(context.Background(), long); model != "test/flash" || complex {
		t.Errorf("simple verdict routed to %q", model)
	}
}

func TestRouterFallsBackToSimple(t *testing.T) {
	long := strings.Repeat("some ordinary request text padding here ", 4)

	// Classifier call fails.
	prov := scripted(errStep(errors.New("quota exhausted")))
	r := NewRouter(func(string) (provider.LLMProvider, string, error) { return prov, "flash", nil },
		"test/flash", "test/pro")
	if model, complex := r.Pick(context.Background(), long); model != "test/flash" || complex {
		t.Errorf("classifier error routed to %q complex=%t", model, complex)
	}

	// Provider cannot even be resolved.
	r = NewRouter(func(string) (provider.LLMProvider, string, error) {
		return nil, "", errors.New("missing api key")
	}, "test/flash", "test/pro")
	if model, complex := r.Pick(context.Background(), long); model != "test/flash" || complex {
		t.Errorf("resolve error routed to %q complex=%t", model, complex)
	}
}
