package commits

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseConventional(t *testing.T) {
	tests := []struct {
		name     string
		message  string
		ok       bool
		typ      string
		scope    string
		subject  string
		breaking bool
	}{
		{"simple", "feat: add thing", true, "feat", "", "add thing", false},
		{"scoped", "fix(parser): handle tabs", true, "fix", "parser", "handle tabs", false},
		{"bang", "feat!: drop v1 api", true, "feat", "", "drop v1 api", true},
		{"scoped bang", "refactor(core)!: rename", true, "refactor", "core", "rename", true},
		{"footer", "feat: x\n\nsome body\n\nBREAKING CHANGE: removed y", true, "feat", "", "x", true},
		{"hyphen footer", "fix: x\n\nBREAKING-CHANGE: removed y", true, "fix", "", "x", true},
		{"uppercase type", "Feat: shout", true, "feat", "", "shout", false},
		{"crlf", "fix: windows\r\n\r\nBREAKING CHANGE: yes", true, "fix", "", "windows", true},
		{"no type", "Update README", false, "", "", "", false},
		{"no space", "feat:missing space", false, "", "", "", false},
		{"merge commit", "Merge branch 'main' into feature", false, "", "", "", false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			info, ok := ParseConventional(tc.message)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.typ, info.Type)
			assert.Equal(t, tc.scope, info.Scope)
			assert.Equal(t, tc.subject, info.Subject)
			assert.Equal(t, tc.breaking, info.Breaking)
			assert.NotEmpty(t, info.Header)
		})
	}
}

func TestParseConventional_BreakingMentionInBodyIsNotAFooter(t *testing.T) {
	info, ok := ParseConventional("fix: x\n\nthis is not a BREAKING CHANGE: footer")
	assert.True(t, ok)
	assert.False(t, info.Breaking)
}

func TestParseBestGuess(t *testing.T) {
	tests := []struct {
		name     string
		message  string
		typ      string
		breaking bool
	}{
		{"prefixed", "feat(ui): new button", "feat", false},
		{"prefix no space", "fix:thing", "fix", false},
		{"bug keyword", "Resolve bug in login", "fix", false},
		{"add keyword", "Add dark mode", "feat", false},
		{"docs keyword", "Improve docs", "chore", false},
		{"unknown", "WIP", "", false},
		{"body break", "Rework storage\n\nThis will break old clients", "", true},
		{"major in header", "Major rewrite of parser", "", true},
		{"bang header", "chore!: drop support", "chore", true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			info := ParseBestGuess(tc.message)
			assert.Equal(t, tc.typ, info.Type)
			assert.Equal(t, tc.breaking, info.Breaking)
		})
	}
}

func TestParseBestGuess_FixBucketCheckedFirst(t *testing.T) {
	// "patch" and "add" both present: fix bucket wins.
	info := ParseBestGuess("Add patch for overflow")
	assert.Equal(t, "fix", info.Type)
}
