package main

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	eventguard "github.com/sbnctech/murmurant-eventguard"
	"github.com/sbnctech/murmurant-eventguard/stores"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	switch cmd {
	case "validate":
		handleValidate()
	case "convert":
		handleConvert()
	case "stats":
		handleStats()
	case "apply":
		handleApply()
	case "keygen":
		handleKeygen()
	case "sign":
		handleSign()
	case "verify":
		handleVerify()
	case "simulate":
		handleSimulate()
	default:
		fmt.Printf("Unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("eventguard-config - capability configuration tool for eventguard")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  eventguard-config validate <file>                - Validate a capability config")
	fmt.Println("  eventguard-config convert <input> <output>       - Convert between YAML and JSON")
	fmt.Println("  eventguard-config stats <file>                   - Show config statistics")
	fmt.Println("  eventguard-config apply <file>                   - Apply config to a capability store")
	fmt.Println("  eventguard-config keygen <prefix>                - Write <prefix>.key and <prefix>.pub")
	fmt.Println("  eventguard-config sign <file> <keyfile>          - Print the config signature")
	fmt.Println("  eventguard-config verify <file> <pubfile> <sig>  - Verify a config signature")
	fmt.Println("  eventguard-config simulate <file> [flags]        - Dry-run one authorization decision")
	fmt.Println()
	fmt.Println("Supported formats: .yaml, .yml, .json")
}

func handleValidate() {
	if len(os.Args) < 3 {
		fmt.Println("Usage: eventguard-config validate <file>")
		os.Exit(1)
	}

	filename := os.Args[2]
	cfg, err := loadConfig(filename)
	if err != nil {
		fmt.Printf("Invalid configuration: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Printf("Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Configuration is valid\n")
	fmt.Printf("  Version: %d\n", cfg.Version)
	fmt.Printf("  Roles:   %d\n", len(cfg.Roles))
}

func handleConvert() {
	if len(os.Args) < 4 {
		fmt.Println("Usage: eventguard-config convert <input> <output>")
		os.Exit(1)
	}

	inputFile := os.Args[2]
	outputFile := os.Args[3]

	cfg, err := loadConfig(inputFile)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}

	if err := saveConfig(cfg, outputFile); err != nil {
		fmt.Printf("Error saving config: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Converted %s -> %s\n", inputFile, outputFile)
}

func handleStats() {
	if len(os.Args) < 3 {
		fmt.Println("Usage: eventguard-config stats <file>")
		os.Exit(1)
	}

	filename := os.Args[2]
	cfg, err := loadConfig(filename)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}

	stat, _ := os.Stat(filename)

	fmt.Println("Configuration Statistics")
	fmt.Println("========================")
	if stat != nil {
		fmt.Printf("File size: %d bytes\n", stat.Size())
	}
	fmt.Printf("Version: %d\n", cfg.Version)
	fmt.Println()

	fmt.Println("Roles:")
	totalCaps := 0
	for _, grant := range cfg.Roles {
		fmt.Printf("  %-16s %d capabilities\n", grant.Role, len(grant.Capabilities))
		totalCaps += len(grant.Capabilities)
	}
	fmt.Println()
	fmt.Printf("  Total capabilities: %d\n", totalCaps)
	if len(cfg.Roles) > 0 {
		fmt.Printf("  Avg per role:       %.1f\n", float64(totalCaps)/float64(len(cfg.Roles)))
	}
	fmt.Println()

	fmt.Println("Engine Configuration (0 = built-in default):")
	fmt.Printf("  Capability cache TTL:      %dms\n", cfg.Engine.CapabilityCacheTTL)
	fmt.Printf("  Capability cache counters: %d\n", cfg.Engine.CapabilityCacheNumCounters)
	fmt.Printf("  Capability cache max cost: %d\n", cfg.Engine.CapabilityCacheMaxCost)
	fmt.Printf("  Capability cache buffer:   %d\n", cfg.Engine.CapabilityCacheBufferItems)
}

func handleApply() {
	if len(os.Args) < 3 {
		fmt.Println("Usage: eventguard-config apply <file>")
		os.Exit(1)
	}

	filename := os.Args[2]
	cfg, err := loadConfig(filename)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Printf("Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	store := stores.NewMemoryCapabilityStore()
	ctx := context.Background()
	if err := eventguard.ApplyConfig(ctx, store, cfg); err != nil {
		fmt.Printf("Error applying config: %v\n", err)
		os.Exit(1)
	}

	roles, _ := store.Roles(ctx)
	fmt.Printf("Configuration applied successfully\n")
	fmt.Printf("  Roles loaded: %d\n", len(roles))
	for _, role := range roles {
		caps, _ := store.Capabilities(ctx, role)
		fmt.Printf("  %-16s %v\n", role, caps.List())
	}
}

func handleKeygen() {
	if len(os.Args) < 3 {
		fmt.Println("Usage: eventguard-config keygen <prefix>")
		os.Exit(1)
	}

	prefix := os.Args[2]
	pub, priv, err := eventguard.GenerateSigningKey()
	if err != nil {
		fmt.Printf("Error generating key: %v\n", err)
		os.Exit(1)
	}

	keyFile := prefix + ".key"
	pubFile := prefix + ".pub"
	if err := os.WriteFile(keyFile, []byte(base64.StdEncoding.EncodeToString(priv)), 0600); err != nil {
		fmt.Printf("Error writing %s: %v\n", keyFile, err)
		os.Exit(1)
	}
	if err := os.WriteFile(pubFile, []byte(base64.StdEncoding.EncodeToString(pub)), 0644); err != nil {
		fmt.Printf("Error writing %s: %v\n", pubFile, err)
		os.Exit(1)
	}

	fmt.Printf("Wrote %s and %s\n", keyFile, pubFile)
}

func handleSign() {
	if len(os.Args) < 4 {
		fmt.Println("Usage: eventguard-config sign <file> <keyfile>")
		os.Exit(1)
	}

	cfg, err := loadConfig(os.Args[2])
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}

	priv, err := readKeyFile(os.Args[3], ed25519.PrivateKeySize)
	if err != nil {
		fmt.Printf("Error reading key: %v\n", err)
		os.Exit(1)
	}

	sig, err := eventguard.SignConfig(ed25519.PrivateKey(priv), cfg)
	if err != nil {
		fmt.Printf("Error signing config: %v\n", err)
		os.Exit(1)
	}

	fmt.Println(sig)
}

func handleVerify() {
	if len(os.Args) < 5 {
		fmt.Println("Usage: eventguard-config verify <file> <pubfile> <signature>")
		os.Exit(1)
	}

	cfg, err := loadConfig(os.Args[2])
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}

	pub, err := readKeyFile(os.Args[3], ed25519.PublicKeySize)
	if err != nil {
		fmt.Printf("Error reading public key: %v\n", err)
		os.Exit(1)
	}

	ok, err := eventguard.VerifyConfig(ed25519.PublicKey(pub), cfg, os.Args[4])
	if err != nil {
		fmt.Printf("Error verifying config: %v\n", err)
		os.Exit(1)
	}
	if !ok {
		fmt.Println("Signature is INVALID")
		os.Exit(1)
	}
	fmt.Println("Signature is valid")
}

func handleSimulate() {
	if len(os.Args) < 3 {
		fmt.Println("Usage: eventguard-config simulate <file> [flags]")
		os.Exit(1)
	}

	cfgFile := os.Args[2]

	fs := flag.NewFlagSet("simulate", flag.ExitOnError)
	role := fs.String("role", "member", "actor role name")
	member := fs.String("member", "", "actor member id (empty = anonymous)")
	action := fs.String("action", "view", "action to evaluate")
	status := fs.String("status", "PUBLISHED", "event lifecycle status")
	target := fs.String("target", "", "target status for edit_status")
	chair := fs.String("chair", "", "event chair member id")
	eventID := fs.String("event", "evt-simulated", "event id")
	endsIn := fs.Duration("ends-in", 2*time.Hour, "event end relative to now")
	_ = fs.Parse(os.Args[3:])

	cfg, err := loadConfig(cfgFile)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Printf("Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	now := time.Now()
	req := eventguard.SimulateRequest{
		MemberID:  *member,
		Role:      *role,
		EventID:   *eventID,
		Status:    *status,
		ChairID:   *chair,
		StartTime: now.Add(*endsIn - time.Hour),
		EndTime:   now.Add(*endsIn),
		Action:    *action,
		Target:    *target,
		Now:       now,
	}

	res, err := eventguard.Simulate(context.Background(), cfg.Resolver(), req)
	if err != nil {
		fmt.Printf("Error simulating: %v\n", err)
		os.Exit(1)
	}

	if res.Decision.Allowed {
		fmt.Printf("ALLOWED (%s): %s\n", res.Decision.Invariant, res.Decision.Reason)
	} else {
		fmt.Printf("DENIED [%s] (%s): %s\n", res.Decision.Code, res.Decision.Invariant, res.Decision.Reason)
	}

	entryJSON, _ := json.MarshalIndent(res.Entry, "", "  ")
	fmt.Println()
	fmt.Println("Audit entry a guard would have written:")
	fmt.Println(string(entryJSON))
}

func readKeyFile(filename string, wantLen int) ([]byte, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	key, err := base64.StdEncoding.DecodeString(strings.TrimSpace(string(data)))
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", filename, err)
	}
	if len(key) != wantLen {
		return nil, fmt.Errorf("%s: expected %d key bytes, got %d", filename, wantLen, len(key))
	}
	return key, nil
}

func loadConfig(filename string) (*eventguard.Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}

	ext := strings.ToLower(filepath.Ext(filename))
	loader := eventguard.NewConfigLoader()

	switch ext {
	case ".yaml", ".yml":
		return loader.LoadYAML(data)
	case ".json":
		return loader.LoadJSON(data)
	default:
		return nil, fmt.Errorf("unsupported file format: %s", ext)
	}
}

func saveConfig(cfg *eventguard.Config, filename string) error {
	ext := strings.ToLower(filepath.Ext(filename))

	var data []byte
	var err error

	switch ext {
	case ".yaml", ".yml":
		data, err = cfg.ToYAML()
	case ".json":
		data, err = cfg.ToJSON()
	default:
		return fmt.Errorf("unsupported file format: %s", ext)
	}

	if err != nil {
		return err
	}

	return os.WriteFile(filename, data, 0644)
}
