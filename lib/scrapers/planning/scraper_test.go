package planning

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestValidateRequest(t *testing.T) {
	good := Credentials{Username: "etu1234", Password: "secret"}

	cases := []struct {
		name   string
		creds  Credentials
		group  string
		start  string
		end    string
		reason string
	}{
		{
			name:  "ok",
			creds: good, group: "INFO1-A1", start: "01/09/2025", end: "31/08/2026",
		},
		{
			name:  "empty credentials",
			creds: Credentials{}, group: "INFO1-A1", start: "01/09/2025", end: "31/08/2026",
			reason: "credentials",
		},
		{
			name:  "empty group",
			creds: good, group: "", start: "01/09/2025", end: "31/08/2026",
			reason: "group",
		},
		{
			name:  "iso start date",
			creds: good, group: "INFO1-A1", start: "2025-09-01", end: "31/08/2026",
			reason: "start date",
		},
		{
			name:  "garbage end date",
			creds: good, group: "INFO1-A1", start: "01/09/2025", end: "tomorrow",
			reason: "end date",
		},
	}

	for _, test := range cases {
		t.Run(test.name, func(t *testing.T) {
			err := validateRequest(test.creds, test.group, test.start, test.end)
			if test.reason == "" {
				require.NoError(t, err)
				return
			}
			var verr ValidationError
			require.ErrorAs(t, err, &verr)
			require.Contains(t, verr.Reason, test.reason)
		})
	}
}

func TestErrorTypesAreDistinguishable(t *testing.T) {
	var wrapped error = AuthenticationTimeoutError{Timeout: time.Second * 30}

	var authErr AuthenticationTimeoutError
	require.True(t, errors.As(wrapped, &authErr))
	require.Equal(t, time.Second*30, authErr.Timeout)

	var groupErr GroupNotFoundError
	require.False(t, errors.As(wrapped, &groupErr))
}

func TestGroupNotFoundErrorSuggestion(t *testing.T) {
	withClosest := GroupNotFoundError{Group: "INFO1-A2", Closest: "INFO1 A2"}
	require.Contains(t, withClosest.Error(), "did you mean")
	require.Contains(t, withClosest.Error(), "INFO1 A2")

	without := GroupNotFoundError{Group: "NOPE"}
	require.NotContains(t, without.Error(), "did you mean")
}

func TestClientOptionDefaults(t *testing.T) {
	opts := ClientOptions{
		LoginUrl: "https://cas.example.edu/login",
		AppUrl:   "https://planning.example.edu/direct/",
	}.withDefaults()

	require.NotZero(t, opts.NavigationTimeout)
	require.NotZero(t, opts.SettleDelay)
	require.NotZero(t, opts.GenerateDelay)
	require.NotEmpty(t, opts.LoginTitle)
}

func TestIsExportLink(t *testing.T) {
	require.True(t, isExportLink("https://planning.example.edu/jsp/custom/modules/plannings/anonymous_cal.jsp?resources=42"))
	require.True(t, isExportLink("/export/ical?id=12"))
	require.False(t, isExportLink("https://planning.example.edu/faq"))
}

func TestResolveLink(t *testing.T) {
	c := NewClient(ClientOptions{
		LoginUrl: "https://cas.example.edu/login",
		AppUrl:   "https://planning.example.edu/direct/myplanning.jsp",
	})

	abs, err := c.resolveLink("/jsp/custom/anonymous_cal.jsp?resources=42&calType=ical")
	if err != nil {
		t.Fatal(err)
	}
	require.Equal(t, "https://planning.example.edu/jsp/custom/anonymous_cal.jsp?resources=42&calType=ical", abs)

	abs, err = c.resolveLink("https://other.example.edu/cal.ics")
	if err != nil {
		t.Fatal(err)
	}
	require.Equal(t, "https://other.example.edu/cal.ics", abs)
}
