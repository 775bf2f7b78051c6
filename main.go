package main

import (
	"encoding/hex"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/malik672/risc-evm/config"
	"github.com/malik672/risc-evm/translator"
)

// Version information - can be overridden at build time with:
// go build -ldflags "-X main.Version=v1.2.3"
var (
	Version = "dev"     // Version number (set by git tag at build time)
	Commit  = "unknown" // Git commit hash
	Date    = "unknown" // Build date
)

func main() {
	// Command-line flags
	var (
		showVersion = flag.Bool("version", false, "Show version information")
		showHelp    = flag.Bool("help", false, "Show help information")
		configFile  = flag.String("config", "", "Config file path (default: platform config dir)")
		hexInput    = flag.String("hex", "", "Bytecode as a hex string (alternative to a file argument)")
		gasLimit    = flag.Uint64("gas-limit", 0, "Override the configured gas limit")
		laxDecode   = flag.Bool("lax-decode", false, "Disable PUSH immediate bounds checking")
		skipUnknown = flag.Bool("skip-unknown", false, "Skip unimplemented opcodes instead of rejecting")
		noOptimize  = flag.Bool("no-optimize", false, "Disable the IR optimizer")

		showInstructions = flag.Bool("show-instructions", false, "Print the decoded instruction stream")
		showIR           = flag.Bool("show-ir", false, "Print the optimized IR")
		showRiscV        = flag.Bool("show-riscv", true, "Print the emitted RV64I assembly")
		enableStats      = flag.Bool("stats", false, "Print translation statistics")
		statsFile        = flag.String("stats-file", "", "Write statistics JSON to this file")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("risc-evm %s (commit %s, built %s)\n", Version, Commit, Date)
		return
	}
	if *showHelp {
		printUsage()
		return
	}

	bytecode, err := readBytecode(*hexInput, flag.Args())
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	cfg, err := loadConfig(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	// Flags override the config file
	if *gasLimit > 0 {
		cfg.Gas.Limit = *gasLimit
	}
	if *laxDecode {
		cfg.Translator.StrictPush = false
	}
	if *skipUnknown {
		cfg.Translator.UnknownOpcodes = "ignore"
	}
	if *noOptimize {
		cfg.Translator.OptimizeIR = false
	}
	cfg.Display.ShowInstructions = cfg.Display.ShowInstructions || *showInstructions
	cfg.Display.ShowIR = cfg.Display.ShowIR || *showIR
	cfg.Display.ShowRiscV = *showRiscV
	cfg.Statistics.Enable = cfg.Statistics.Enable || *enableStats
	if *statsFile != "" {
		cfg.Statistics.OutputFile = *statsFile
	}

	if err := run(cfg, bytecode, *statsFile != ""); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, bytecode []byte, writeStats bool) error {
	tr, err := translator.New(cfg)
	if err != nil {
		return err
	}

	result, err := tr.Translate(bytecode)
	if err != nil {
		return err
	}

	if cfg.Display.ShowInstructions {
		fmt.Println("== instructions ==")
		for _, inst := range result.Instructions {
			fmt.Printf("  0x%04X  %s\n", inst.Offset, inst)
		}
	}
	if cfg.Display.ShowIR {
		fmt.Println("== ir ==")
		for i, inst := range result.OptimizedIR {
			fmt.Printf("  %4d  %s\n", i, inst)
		}
	}
	if cfg.Display.ShowRiscV {
		fmt.Println("== rv64i ==")
		for i, inst := range result.RiscV {
			fmt.Printf("  %4d  %s\n", i, inst)
		}
		if len(result.CalleeSaved) > 0 {
			names := make([]string, 0, len(result.CalleeSaved))
			for _, reg := range result.CalleeSaved {
				names = append(names, reg.ABIName())
			}
			fmt.Printf("callee-saved: %s\n", strings.Join(names, ", "))
		}
	}

	if cfg.Statistics.Enable {
		fmt.Println("== statistics ==")
		fmt.Print(result.Stats.Summary())
	}
	if writeStats {
		if err := result.Stats.SaveToFile(cfg.Statistics.OutputFile); err != nil {
			return err
		}
	}

	return nil
}

// readBytecode takes the input either from the -hex flag or from a
// file argument containing raw bytes or hex text.
func readBytecode(hexInput string, args []string) ([]byte, error) {
	if hexInput != "" {
		return decodeHex(hexInput)
	}
	if len(args) != 1 {
		return nil, fmt.Errorf("expected a bytecode file argument or -hex (see -help)")
	}

	data, err := os.ReadFile(args[0]) // #nosec G304 -- user-supplied input path
	if err != nil {
		return nil, fmt.Errorf("failed to read bytecode file: %w", err)
	}

	// Files holding hex text (optionally 0x-prefixed) are decoded;
	// anything else is taken as raw bytecode.
	trimmed := strings.TrimSpace(string(data))
	if decoded, err := decodeHex(trimmed); err == nil {
		return decoded, nil
	}
	return data, nil
}

func decodeHex(s string) ([]byte, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "0x")
	decoded, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid hex input: %w", err)
	}
	return decoded, nil
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFrom(path)
	}
	return config.Load()
}

func printUsage() {
	fmt.Println(`risc-evm - EVM to RV64I ahead-of-time translator

Usage:
  risc-evm [options] <bytecode-file>
  risc-evm [options] -hex 6080604052

Input files may contain raw bytecode or hex text (0x prefix optional).

Options:`)
	flag.PrintDefaults()
}
