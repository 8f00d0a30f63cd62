package strategy

import "testing"

func TestSelect_OverrideWins(t *testing.T) {
	if got := Select(Signals{Override: OverrideOneshot, URLCount: 5}); got != Oneshot {
		t.Fatalf("expected override to win, got %s", got)
	}
	if got := Select(Signals{Override: OverridePool, CLISingleShot: true}); got != Pool {
		t.Fatalf("expected override to win, got %s", got)
	}
}

func TestSelect_BatchClassSignalsSelectPool(t *testing.T) {
	cases := []Signals{
		{URLCount: 2},
		{HasBatchFile: true},
		{ExplicitBatchFlag: true},
		{BatchModeEnvSet: true},
	}
	for _, s := range cases {
		if got := Select(s); got != Pool {
			t.Errorf("Select(%+v) = %s, want pool", s, got)
		}
	}
}

func TestSelect_OneshotClassSignals(t *testing.T) {
	cases := []Signals{
		{CLISingleShot: true},
		{TestEnv: true},
		{ContainerEnv: true},
		{ServerlessEnv: true},
	}
	for _, s := range cases {
		if got := Select(s); got != Oneshot {
			t.Errorf("Select(%+v) = %s, want oneshot", s, got)
		}
	}
}

func TestSelect_DefaultsToPoolInServerContext(t *testing.T) {
	if got := Select(Signals{ServerAPIContext: true}); got != Pool {
		t.Fatalf("expected pool as server-context default, got %s", got)
	}
	if got := Select(Signals{}); got != Pool {
		t.Fatalf("expected pool as overall default, got %s", got)
	}
}

func TestSelect_BatchClassTakesPrecedenceOverOneshotClass(t *testing.T) {
	// More than one URL plus a test-environment marker: batch-class
	// signals are checked first.
	if got := Select(Signals{URLCount: 3, TestEnv: true}); got != Pool {
		t.Fatalf("expected batch-class to take precedence, got %s", got)
	}
}

func TestSelect_Idempotent(t *testing.T) {
	s := Signals{URLCount: 1, CLISingleShot: true}
	a := Select(s)
	b := Select(s)
	if a != b {
		t.Fatalf("expected deterministic result, got %s then %s", a, b)
	}
}
