package util

import (
	"os"
	"strings"
)

const EnvironmentPrefix = "TRAVIGO_"

// GetEnvironmentVariables returns the TRAVIGO_ settings of the process
func GetEnvironmentVariables() map[string]string {
	environmentVariables := map[string]string{}

	for _, variable := range os.Environ() {
		name, value, _ := strings.Cut(variable, "=")
		if strings.HasPrefix(name, EnvironmentPrefix) {
			environmentVariables[name] = value
		}
	}

	return environmentVariables
}
