package metrics

import (
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/encointer/personhood-oracle/config"
	metricsConfig "github.com/encointer/personhood-oracle/oracle-node/cmd/common/metrics/config"
)

func TestPullService(t *testing.T) {
	require := require.New(t)

	saved := config.GlobalConfig.Metrics
	t.Cleanup(func() { config.GlobalConfig.Metrics = saved })

	config.GlobalConfig.Metrics = metricsConfig.Config{Mode: "push"}
	_, err := New()
	require.Error(err, "unknown modes are rejected")

	config.GlobalConfig.Metrics = metricsConfig.DefaultConfig()
	require.False(Enabled())
	stub, err := New()
	require.NoError(err)
	require.NoError(stub.Start())
	stub.Stop()
	<-stub.Quit()

	config.GlobalConfig.Metrics = metricsConfig.Config{
		Mode:    metricsConfig.ModePull,
		Address: "127.0.0.1:0",
		Labels:  map[string]string{"instance": "test"},
	}
	require.True(Enabled())
	svc, err := New()
	require.NoError(err)
	require.NoError(svc.Start())
	defer func() {
		svc.Stop()
		<-svc.Quit()
	}()

	addr := svc.(*pullService).ln.Addr().String()
	rsp, err := http.Get("http://" + addr + "/metrics")
	require.NoError(err)
	defer rsp.Body.Close()
	body, err := io.ReadAll(rsp.Body)
	require.NoError(err)
	require.Contains(string(body), MetricUp+`{instance="test"`)
}
