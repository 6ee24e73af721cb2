package client

import (
	"context"
	"testing"

	"github.com/goliatone/go-directus/core"
	"github.com/goliatone/go-directus/store/memory"
	goerrors "github.com/goliatone/go-errors"
)

func TestBuild_AllCapabilitySubsets(t *testing.T) {
	order := core.CapabilityOrder()
	for mask := 0; mask < 1<<len(order); mask++ {
		var selected []core.Capability
		for i, capability := range order {
			if mask&(1<<i) != 0 {
				selected = append(selected, capability)
			}
		}
		caps := core.CapabilityConfig{}.Enable(selected...)
		caps.StaticToken.Token = "static"

		c, err := Build("https://x.test", caps, memory.New())
		if err != nil {
			t.Fatalf("mask %05b: build: %v", mask, err)
		}
		if c.Capabilities() != core.NewCapabilitySet(selected...) {
			t.Fatalf("mask %05b: expected %v, got %s", mask, selected, c.Capabilities())
		}

		accessors := map[core.Capability]func() (any, error){
			core.CapabilityAuthentication: func() (any, error) { return c.Authentication() },
			core.CapabilityREST:           func() (any, error) { return c.REST() },
			core.CapabilityGraphQL:        func() (any, error) { return c.GraphQL() },
			core.CapabilityRealtime:       func() (any, error) { return c.Realtime() },
			core.CapabilityStaticToken:    func() (any, error) { return c.StaticToken() },
		}
		for i, capability := range order {
			want := mask&(1<<i) != 0
			module, err := accessors[capability]()
			if want {
				if err != nil {
					t.Fatalf("mask %05b: expected %s attached, got %v", mask, capability, err)
				}
				if module == nil {
					t.Fatalf("mask %05b: expected %s module", mask, capability)
				}
				continue
			}
			if err == nil {
				t.Fatalf("mask %05b: expected %s accessor to fail", mask, capability)
			}
			var rich *goerrors.Error
			if !goerrors.As(err, &rich) || rich.TextCode != core.ErrorCapabilityNotConfigured {
				t.Fatalf("mask %05b: expected capability error for %s, got %v", mask, capability, err)
			}
			if c.Has(capability) {
				t.Fatalf("mask %05b: Has(%s) should be false", mask, capability)
			}
		}
	}
}

func TestBuild_RejectsInvalidInput(t *testing.T) {
	cases := []struct {
		name    string
		apiURL  string
		caps    core.CapabilityConfig
		storage core.CredentialStore
	}{
		{name: "empty url", apiURL: "", storage: memory.New()},
		{name: "relative url", apiURL: "/api", storage: memory.New()},
		{name: "bad scheme", apiURL: "ftp://x.test", storage: memory.New()},
		{name: "auth without storage", apiURL: "https://x.test", caps: core.CapabilityConfig{}.Enable(core.CapabilityAuthentication)},
		{name: "static token without token", apiURL: "https://x.test", caps: core.CapabilityConfig{}.Enable(core.CapabilityStaticToken)},
	}
	for _, tc := range cases {
		_, err := Build(tc.apiURL, tc.caps, tc.storage)
		if err == nil {
			t.Fatalf("%s: expected error", tc.name)
		}
		if !core.IsConfigurationError(err) {
			t.Fatalf("%s: expected configuration error, got %v", tc.name, err)
		}
	}
}

func TestBuild_NewInstancesEachCall(t *testing.T) {
	caps := core.CapabilityConfig{}.Enable(core.CapabilityREST, core.CapabilityAuthentication)
	store := memory.New()
	first, err := Build("https://x.test/", caps, store)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	second, err := Build("https://x.test/", caps, store)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if first == second {
		t.Fatalf("expected distinct clients")
	}
	firstREST, _ := first.REST()
	secondREST, _ := second.REST()
	if firstREST == secondREST {
		t.Fatalf("expected distinct modules")
	}
	if first.URL() != "https://x.test" {
		t.Fatalf("expected normalized url, got %q", first.URL())
	}
}

func TestBuild_RecordsMetric(t *testing.T) {
	metrics := &countingRecorder{}
	_, err := Build("https://x.test", core.CapabilityConfig{}.Enable(core.CapabilityREST), nil, WithMetricsRecorder(metrics))
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if metrics.counters[core.MetricClientBuilds] != 1 {
		t.Fatalf("expected one build counter, got %#v", metrics.counters)
	}
}

func TestClientToken_PrefersStaticToken(t *testing.T) {
	store := memory.NewWithCredential(&core.Credential{AccessToken: "session"})
	caps := core.CapabilityConfig{}.Enable(core.CapabilityAuthentication, core.CapabilityStaticToken)
	caps.StaticToken.Token = "static"
	c, err := Build("https://x.test", caps, store)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	token, err := c.Token(context.Background())
	if err != nil || token != "static" {
		t.Fatalf("expected static token, got %q err=%v", token, err)
	}

	withoutStatic, _ := Build("https://x.test", core.CapabilityConfig{}.Enable(core.CapabilityAuthentication), store)
	token, err = withoutStatic.Token(context.Background())
	if err != nil || token != "session" {
		t.Fatalf("expected session token, got %q err=%v", token, err)
	}

	anonymous, _ := Build("https://x.test", core.CapabilityConfig{}.Enable(core.CapabilityREST), nil)
	token, err = anonymous.Token(context.Background())
	if err != nil || token != "" {
		t.Fatalf("expected anonymous, got %q err=%v", token, err)
	}
}

func TestStaticTokenClient_SetToken(t *testing.T) {
	module := newStaticTokenClient(" a ")
	if module.Token() != "a" {
		t.Fatalf("expected trimmed token")
	}
	if err := module.SetToken(" "); err == nil {
		t.Fatalf("expected empty token to be rejected")
	}
	if err := module.SetToken("b"); err != nil || module.Token() != "b" {
		t.Fatalf("expected token b, got %q err=%v", module.Token(), err)
	}
}

func TestClientClose_Idempotent(t *testing.T) {
	c, err := Build("https://x.test", core.CapabilityConfig{}.Enable(core.CapabilityRealtime), nil)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
}

type countingRecorder struct {
	counters map[string]int
}

func (r *countingRecorder) IncCounter(_ context.Context, name string, _ int64, _ map[string]string) {
	if r.counters == nil {
		r.counters = map[string]int{}
	}
	r.counters[name]++
}

func (r *countingRecorder) ObserveHistogram(context.Context, string, float64, map[string]string) {}
