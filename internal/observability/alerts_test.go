package observability

import (
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	jobmetrics "github.com/signhub/signhub/internal/jobs"
)

type alertRule struct {
	Alert       string            `yaml:"alert"`
	Expr        string            `yaml:"expr"`
	For         string            `yaml:"for"`
	Labels      map[string]string `yaml:"labels"`
	Annotations map[string]string `yaml:"annotations"`
}

type alertGroup struct {
	Name  string      `yaml:"name"`
	Rules []alertRule `yaml:"rules"`
}

type alertSpec struct {
	Groups []alertGroup `yaml:"groups"`
}

var metricName = regexp.MustCompile(`signhub_[a-z_]+`)

func loadAlerts(t *testing.T) alertSpec {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("..", "..", "deploy", "prometheus", "alerts", "signhub.yml"))
	require.NoError(t, err)
	var spec alertSpec
	require.NoError(t, yaml.Unmarshal(data, &spec))
	require.Len(t, spec.Groups, 1)
	return spec
}

// exportedMetrics lists every metric family the API and worker register.
func exportedMetrics(t *testing.T) map[string]bool {
	t.Helper()
	m := NewMetrics()
	m.LoginAttempt(false)
	m.TwoFactorVerified(false)
	m.PermissionSaved("campaign")

	workerRegistry := prometheus.NewRegistry()
	jobmetrics.NewMetrics(workerRegistry).Track("mail:send").End(assert.AnError)

	names := map[string]bool{}
	for _, g := range []prometheus.Gatherer{m.registry, workerRegistry} {
		families, err := g.Gather()
		require.NoError(t, err)
		for _, f := range families {
			names[f.GetName()] = true
		}
	}
	// Counters on the request path only appear after traffic.
	names["signhub_http_requests_total"] = true
	return names
}

func TestAlertRulesAreComplete(t *testing.T) {
	spec := loadAlerts(t)
	group := spec.Groups[0]
	assert.Equal(t, "signhub", group.Name)

	want := map[string]string{
		"HighErrorRate":         "critical",
		"LoginFailureSpike":     "warning",
		"TwoFactorFailureSpike": "warning",
		"MailJobsFailing":       "critical",
	}
	require.Len(t, group.Rules, len(want))
	for _, rule := range group.Rules {
		severity, ok := want[rule.Alert]
		require.True(t, ok, "unexpected rule %q", rule.Alert)
		assert.Equal(t, severity, rule.Labels["severity"], rule.Alert)
		assert.NotEmpty(t, rule.Annotations["summary"], rule.Alert)
		assert.NotEmpty(t, rule.Annotations["description"], rule.Alert)
		assert.NotEmpty(t, rule.Expr, rule.Alert)
		assert.NotEmpty(t, rule.For, rule.Alert)
	}
}

func TestAlertRulesReferenceExportedMetrics(t *testing.T) {
	spec := loadAlerts(t)
	exported := exportedMetrics(t)
	for _, rule := range spec.Groups[0].Rules {
		refs := metricName.FindAllString(rule.Expr, -1)
		require.NotEmpty(t, refs, rule.Alert)
		for _, ref := range refs {
			assert.True(t, exported[ref], "%s references unknown metric %s", rule.Alert, ref)
		}
	}
}
