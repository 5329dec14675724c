package command

import "testing"

func TestExtract(t *testing.T) {
	tests := []struct {
		name         string
		text         string
		wantTexts    []string
		wantStrategy string
	}{
		{
			name:         "fenced block wins over other strategies",
			text:         "Sure, run this:\n```bash\nmultipass launch --name web1\n```\nAlso 'multipass list' works.",
			wantTexts:    []string{"multipass launch --name web1"},
			wantStrategy: StrategyFenced,
		},
		{
			name:         "untagged fence",
			text:         "```\nmultipass list\n```",
			wantTexts:    []string{"multipass list"},
			wantStrategy: StrategyFenced,
		},
		{
			name:         "inline fence",
			text:         "Use ```multipass info web1``` to check.",
			wantTexts:    []string{"multipass info web1"},
			wantStrategy: StrategyFenced,
		},
		{
			name:         "every matching fence is a candidate",
			text:         "```sh\nmultipass stop a\n```\nthen\n```shell\nmultipass start a\n```",
			wantTexts:    []string{"multipass stop a", "multipass start a"},
			wantStrategy: StrategyFenced,
		},
		{
			name:         "multipass tag without binary in body",
			text:         "```multipass\nlaunch --name web1\n```",
			wantTexts:    []string{"launch --name web1"},
			wantStrategy: StrategyFenced,
		},
		{
			name:         "quoted whole line",
			text:         "You can use:\n'multipass list'\nThanks",
			wantTexts:    []string{"multipass list"},
			wantStrategy: StrategyQuoted,
		},
		{
			name:         "backtick quoted line",
			text:         "`multipass launch -n demo -m 2G -c 2`",
			wantTexts:    []string{"multipass launch -n demo -m 2G -c 2"},
			wantStrategy: StrategyQuoted,
		},
		{
			name:         "line with prompt and trailing period",
			text:         "Run\n$ multipass start web1.\nthen wait",
			wantTexts:    []string{"multipass start web1"},
			wantStrategy: StrategyLine,
		},
		{
			name:         "binary matched case-insensitively",
			text:         "Multipass list",
			wantTexts:    []string{"Multipass list"},
			wantStrategy: StrategyLine,
		},
		{
			name:         "scan inside prose",
			text:         "Try multipass list, then multipass info web1.",
			wantTexts:    []string{"multipass list", "multipass info web1"},
			wantStrategy: StrategyScan,
		},
		{
			name:         "scan with flags",
			text:         "I think multipass delete web1 --purge.",
			wantTexts:    []string{"multipass delete web1 --purge"},
			wantStrategy: StrategyScan,
		},
		{
			name:      "no binary token",
			text:      "hello world, nothing to run here",
			wantTexts: nil,
		},
		{
			name:      "fence in another language is ignored",
			text:      "```python\nprint('multipass')\n```",
			wantTexts: nil,
		},
		{
			name:      "empty text",
			text:      "",
			wantTexts: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Extract(tt.text)
			if len(got) != len(tt.wantTexts) {
				t.Fatalf("Extract() returned %d candidates %+v, want %d", len(got), got, len(tt.wantTexts))
			}
			for i, c := range got {
				if c.Text != tt.wantTexts[i] {
					t.Errorf("candidate[%d].Text = %q, want %q", i, c.Text, tt.wantTexts[i])
				}
				if c.Strategy != tt.wantStrategy {
					t.Errorf("candidate[%d].Strategy = %q, want %q", i, c.Strategy, tt.wantStrategy)
				}
				if span := tt.text[c.Start:c.End]; span != c.Text {
					t.Errorf("candidate[%d] span = %q, want %q", i, span, c.Text)
				}
			}
		})
	}
}

func TestStrategies_Order(t *testing.T) {
	want := []string{StrategyFenced, StrategyQuoted, StrategyLine, StrategyScan}
	if len(Strategies) != len(want) {
		t.Fatalf("len(Strategies) = %d, want %d", len(Strategies), len(want))
	}
	for i, s := range Strategies {
		if s.Name != want[i] {
			t.Errorf("Strategies[%d] = %s, want %s", i, s.Name, want[i])
		}
	}
}

func TestStrategies_Independent(t *testing.T) {
	text := "```bash\nmultipass list\n```\n'multipass info a'\nmultipass start b\n"

	tests := []struct {
		strategy string
		find     func(string) []Candidate
		want     int
	}{
		{strategy: StrategyFenced, find: findFenced, want: 1},
		{strategy: StrategyQuoted, find: findQuoted, want: 1},
		// the fenced body line and the bare line; the quoted line does not count
		{strategy: StrategyLine, find: findLines, want: 2},
	}

	for _, tt := range tests {
		t.Run(tt.strategy, func(t *testing.T) {
			if got := tt.find(text); len(got) != tt.want {
				t.Errorf("%s found %d candidates %+v, want %d", tt.strategy, len(got), got, tt.want)
			}
		})
	}
}
