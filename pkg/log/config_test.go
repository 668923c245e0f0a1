package log

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
)

func TestLevelMethodsChainOffGlobal(t *testing.T) {
	Init(Config{Level: "debug", ServiceName: "test"})

	// Level methods must be callable directly on the accessor's result.
	L().Debug().Str("k", "v").Msg("chained debug")
	L().Info().Msg("chained info")
	L().Warn().Msg("chained warn")
	L().Error().Msg("chained error")

	if L() != L() {
		t.Fatal("L() returned different logger instances")
	}
}

func TestNewParsesLevel(t *testing.T) {
	cases := map[string]zerolog.Level{
		"trace":   zerolog.TraceLevel,
		"debug":   zerolog.DebugLevel,
		"warn":    zerolog.WarnLevel,
		"warning": zerolog.WarnLevel,
		"error":   zerolog.ErrorLevel,
		"fatal":   zerolog.FatalLevel,
		"":        zerolog.InfoLevel,
		"bogus":   zerolog.InfoLevel,
	}
	for in, want := range cases {
		if got := New(Config{Level: in}).GetLevel(); got != want {
			t.Errorf("New(%q).GetLevel() = %v, want %v", in, got, want)
		}
	}
}

func TestCtxFallsBackToGlobal(t *testing.T) {
	if got := Ctx(context.Background()); got != L() {
		t.Fatal("Ctx without a stored logger did not fall back to the global")
	}

	child := New(Config{Level: "warn"})
	ctx := WithLogger(context.Background(), child)
	if got := Ctx(ctx); got.GetLevel() != zerolog.WarnLevel {
		t.Fatalf("Ctx returned level %v, want warn", got.GetLevel())
	}
	Ctx(ctx).Warn().Msg("chained from context")
}
