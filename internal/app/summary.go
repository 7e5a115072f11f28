package app

import (
	"fmt"
	"strings"

	"alphadesk/internal/decision"
)

type StartupSummary struct {
	Env       string
	Addr      string
	Schedule  string
	Live      bool
	Groups    []decision.GroupInfo
	Universe  []string
	Lookback  int
	DataDir   string
	Telegram  bool
	Immediate bool
}

func (s *StartupSummary) Print() {
	fmt.Println(strings.Repeat("=", 72))
	fmt.Println("STARTUP SUMMARY")
	fmt.Println(strings.Repeat("=", 72))

	fmt.Println("[RUNTIME]")
	fmt.Printf("  env:       %s\n", s.Env)
	fmt.Printf("  http:      %s\n", s.Addr)
	fmt.Printf("  schedule:  %s\n", s.Schedule)
	fmt.Printf("  mode:      %s\n", modeLabel(s.Live))
	fmt.Printf("  telegram:  %v\n", s.Telegram)
	if s.Immediate {
		fmt.Println("  first cycle runs at startup")
	}
	fmt.Println()

	fmt.Println("[DATA]")
	fmt.Printf("  history dir: %s\n", s.DataDir)
	fmt.Printf("  lookback:    %d bars\n", s.Lookback)
	fmt.Printf("  universe:    %s\n", formatList(s.Universe))
	fmt.Println()

	fmt.Println("[MODEL GROUPS]")
	if len(s.Groups) == 0 {
		fmt.Println("  (none)")
	}
	for _, g := range s.Groups {
		state := "ready"
		if !g.Loaded {
			state = "not loaded"
		}
		fmt.Printf("  > %s (%s)\n", g.Name, state)
		fmt.Printf("    tickers: %s\n", formatList(g.Tickers))
	}
	fmt.Println(strings.Repeat("=", 72))
}

func modeLabel(live bool) string {
	if live {
		return "live (paper broker)"
	}
	return "simulation"
}

func formatList(items []string) string {
	if len(items) == 0 {
		return "-"
	}
	return strings.Join(items, ", ")
}
