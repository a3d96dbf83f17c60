package deploy

import (
	"github.com/Lokesh-Sai-Tamiri/wyra-vertex/config"
)

func testConfig() config.DeployConfig {
	cfg := config.DefaultDeployConfig()
	cfg.Project = "sales-project"
	return cfg
}
