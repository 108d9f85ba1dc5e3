package sheets

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/publicidadxacarlos-cell/FinanzaAI/ledger"
)

func Test_Diff(t *testing.T) {
	type setup struct {
		remote []string
		local  []ledger.Transaction
	}
	tests := []struct {
		name     string
		setup    setup
		expected Report
	}{
		{
			"BothEmpty",
			setup{},
			Report{MissingRemote: []string{}, UnknownRemote: []string{}},
		},
		{
			"AllMatched",
			setup{
				remote: []string{"a", "b"},
				local:  []ledger.Transaction{{ID: "a"}, {ID: "b"}},
			},
			Report{Matched: 2, MissingRemote: []string{}, UnknownRemote: []string{}},
		},
		{
			"LocalNotYetSynced",
			setup{
				remote: []string{"a"},
				local:  []ledger.Transaction{{ID: "a"}, {ID: "b"}, {ID: "c"}},
			},
			Report{Matched: 1, MissingRemote: []string{"b", "c"}, UnknownRemote: []string{}},
		},
		{
			"RemoteHasStaleRows",
			setup{
				remote: []string{"a", "deleted-1", "deleted-2"},
				local:  []ledger.Transaction{{ID: "a"}},
			},
			Report{Matched: 1, MissingRemote: []string{}, UnknownRemote: []string{"deleted-1", "deleted-2"}},
		},
		{
			"DuplicateRemoteRows",
			setup{
				remote: []string{"a", "a"},
				local:  []ledger.Transaction{{ID: "a"}},
			},
			Report{Matched: 1, MissingRemote: []string{}, UnknownRemote: []string{}},
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(tt *testing.T) {
			assert.Equal(tt, test.expected, diff(test.setup.remote, test.setup.local))
		})
	}
}

func Test_Configured(t *testing.T) {
	settings = &Settings{}
	assert.False(t, Configured())

	settings = &Settings{SpreadsheetId: "sheet-id"}
	assert.False(t, Configured())

	settings = &Settings{SpreadsheetId: "sheet-id", Credentials: `{"type":"service_account"}`}
	assert.True(t, Configured())

	settings = nil
}
