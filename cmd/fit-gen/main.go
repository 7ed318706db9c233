package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/exerciselibrary/rogue-garmin-bridge-sub000/pkg/bootstrap"
	"github.com/exerciselibrary/rogue-garmin-bridge-sub000/pkg/domain/workout"
	"github.com/exerciselibrary/rogue-garmin-bridge-sub000/pkg/infrastructure/sentry"
)

func main() {
	inputFile := flag.String("input", "", "Path to input JSON file (WorkoutInput)")
	outputDir := flag.String("output-dir", "", "Output directory (overrides FIT_OUTPUT_DIR)")
	validate := flag.Bool("validate", true, "Validate the produced file and print a report")
	jsonReport := flag.Bool("json", false, "Print the validation report as JSON")
	flag.Parse()

	if *inputFile == "" {
		flag.Usage()
		os.Exit(1)
	}

	svc, err := bootstrap.NewService()
	if err != nil {
		log.Fatalf("Failed to initialize: %v", err)
	}
	defer sentry.Flush(2 * time.Second)
	defer sentry.RecoverAndCapture(slog.Default())

	if *outputDir != "" {
		svc.Converter.OutputDir = *outputDir
	}

	data, err := os.ReadFile(*inputFile)
	if err != nil {
		log.Fatalf("Failed to read input file: %v", err)
	}

	var in workout.Input
	if err := json.Unmarshal(data, &in); err != nil {
		log.Fatalf("Failed to parse JSON: %v", err)
	}

	if !*validate {
		res, err := svc.Converter.Convert(&in)
		if err != nil {
			log.Fatalf("Conversion failed: %v", err)
		}
		fmt.Printf("Successfully wrote FIT file to %s (%d records)\n", res.Path, res.RecordCount)
		return
	}

	res, report, err := svc.ConvertAndValidate(&in)
	if err != nil {
		log.Fatalf("Conversion failed: %v", err)
	}
	fmt.Printf("Successfully wrote FIT file to %s (%d records)\n\n", res.Path, res.RecordCount)

	if *jsonReport {
		out, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			log.Fatalf("Failed to marshal report: %v", err)
		}
		fmt.Println(string(out))
		return
	}
	report.WriteReport(os.Stdout)
}
