package config

import (
	"fmt"
	"os"
)

// Template returns the starter configuration written by init-config.
func Template() string {
	return deployTemplate
}

func WriteTemplate(path string, overwrite bool) error {
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(deployTemplate), 0o644)
}

const deployTemplate = `# deployctl configuration. Every key is optional; omitted keys keep defaults.

[workspace]
# dir = "/srv/arbitrum"   # defaults to the working directory
compose_file = "docker-compose.yml"
state_root = "validator-states"
state_pattern = "validator%d"
build_context = "packages"
dockerfile = "arb-validator.Dockerfile"
cache_context_dir = ".tmp"

[names]
prefix = "arb-validator"
image = "arb-validator"
proxy = "dockerhost"
proxy_image = "qoomon/docker-host"

[cache]
images = ["arb-avm-cpp", "arb-validator"]

[bootstrap]
# Placeholders: {contract} {nodes} {state_root} {sudo_flag}
command = ["python3", "scripts/setup_states.py", "{contract}", "{nodes}", "{sudo_flag}"]

[runtime]
docker = "docker"
compose = ["docker-compose"]
`
