package config_test

import (
	"fmt"

	"github.com/Huntman1210/L.N.A.E.-sub000/internal/config"
)

// ExampleDefault shows the built-in defaults used when no file exists yet.
func ExampleDefault() {
	cfg := config.Default()

	fmt.Printf("hook timeout: %s\n", cfg.Lifecycle.HookTimeout)
	fmt.Printf("server: %s\n", cfg.Server.Addr)
	fmt.Printf("catalog api: %s\n", cfg.Catalog.APIConstraint)
	// Output:
	// hook timeout: 30s
	// server: 127.0.0.1:7890
	// catalog api: ^1.0
}
