package main

import (
	"bytes"
	"flag"
	"fmt"
	"math"
	"os"
	"text/tabwriter"
	"time"

	"github.com/muktihari/fit/decoder"
	"github.com/muktihari/fit/profile/basetype"
	"github.com/muktihari/fit/profile/mesgdef"
	"github.com/muktihari/fit/profile/typedef"

	"github.com/exerciselibrary/rogue-garmin-bridge-sub000/pkg/domain/fitcheck"
)

type FieldStats struct {
	Name  string
	Count int
	Min   float64
	Max   float64
	Sum   float64
}

func NewFieldStats(name string) *FieldStats {
	return &FieldStats{
		Name: name,
		Min:  math.MaxFloat64,
		Max:  -math.MaxFloat64,
	}
}

func (fs *FieldStats) Update(v float64) {
	fs.Count++
	fs.Sum += v
	if v < fs.Min {
		fs.Min = v
	}
	if v > fs.Max {
		fs.Max = v
	}
}

func (fs *FieldStats) Avg() float64 {
	if fs.Count == 0 {
		return 0
	}
	return fs.Sum / float64(fs.Count)
}

func main() {
	inputPath := flag.String("input", "", "Path to FIT file")
	skipValidate := flag.Bool("no-validate", false, "Skip the compatibility report")
	flag.Parse()

	if *inputPath == "" {
		fmt.Println("Please provide input file with -input")
		os.Exit(1)
	}

	data, err := os.ReadFile(*inputPath)
	if err != nil {
		fmt.Printf("Failed to read file: %v\n", err)
		os.Exit(1)
	}

	fitDec := decoder.New(bytes.NewReader(data))
	fitData, err := fitDec.Decode()
	if err != nil {
		fmt.Printf("Failed to decode FIT file: %v\n", err)
		os.Exit(1)
	}

	stats := map[string]*FieldStats{
		"heart_rate":     NewFieldStats("HeartRate"),
		"power":          NewFieldStats("Power"),
		"cadence":        NewFieldStats("Cadence"),
		"speed":          NewFieldStats("Speed"),
		"enhanced_speed": NewFieldStats("EnhancedSpeed"),
		"distance":       NewFieldStats("Distance"),
	}

	recordCount := 0
	var firstRecord, lastRecord time.Time

	type summaryInfo struct {
		kind      string
		startTime time.Time
		duration  float64
		distance  float64
		sport     string
		subSport  string
	}
	var summaries []summaryInfo

	fmt.Println("Analyzing FIT file...")
	for _, msg := range fitData.Messages {
		switch msg.Num {
		case typedef.MesgNumFileId:
			f := mesgdef.NewFileId(&msg)
			fmt.Printf("File: type=%s manufacturer=%d product=%d serial=%d created=%s\n",
				f.Type, f.Manufacturer, f.Product, f.SerialNumber,
				f.TimeCreated.UTC().Format(time.RFC3339))

		case typedef.MesgNumDeviceInfo:
			d := mesgdef.NewDeviceInfo(&msg)
			fmt.Printf("Device: %q manufacturer=%d product=%d\n",
				d.ProductName, d.Manufacturer, d.Product)

		case typedef.MesgNumSession:
			s := mesgdef.NewSession(&msg)
			summaries = append(summaries, summaryInfo{
				kind:      "session",
				startTime: s.StartTime.UTC(),
				duration:  s.TotalElapsedTimeScaled(),
				distance:  s.TotalDistanceScaled(),
				sport:     s.Sport.String(),
				subSport:  s.SubSport.String(),
			})

		case typedef.MesgNumLap:
			l := mesgdef.NewLap(&msg)
			summaries = append(summaries, summaryInfo{
				kind:      "lap",
				startTime: l.StartTime.UTC(),
				duration:  l.TotalElapsedTimeScaled(),
				distance:  l.TotalDistanceScaled(),
				sport:     l.Sport.String(),
				subSport:  l.SubSport.String(),
			})

		case typedef.MesgNumRecord:
			recordCount++
			r := mesgdef.NewRecord(&msg)
			if !r.Timestamp.IsZero() {
				if firstRecord.IsZero() {
					firstRecord = r.Timestamp
				}
				lastRecord = r.Timestamp
			}
			if r.HeartRate != basetype.Uint8Invalid {
				stats["heart_rate"].Update(float64(r.HeartRate))
			}
			if r.Power != basetype.Uint16Invalid {
				stats["power"].Update(float64(r.Power))
			}
			if r.Cadence != basetype.Uint8Invalid {
				stats["cadence"].Update(float64(r.Cadence))
			}
			if r.Speed != basetype.Uint16Invalid {
				stats["speed"].Update(r.SpeedScaled())
			}
			if r.EnhancedSpeed != basetype.Uint32Invalid {
				stats["enhanced_speed"].Update(r.EnhancedSpeedScaled())
			}
			if r.Distance != basetype.Uint32Invalid {
				stats["distance"].Update(r.DistanceScaled())
			}
		}
	}

	fmt.Printf("\n=== SUMMARIES: %d ===\n", len(summaries))
	if len(summaries) > 0 {
		sw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(sw, "Kind\tStart Time\tDuration\tDistance\tSport\tSubSport")
		fmt.Fprintln(sw, "----\t----------\t--------\t--------\t-----\t--------")
		for _, s := range summaries {
			durationStr := fmt.Sprintf("%.0fm%.0fs", s.duration/60, float64(int(s.duration)%60))
			distanceStr := fmt.Sprintf("%.2f km", s.distance/1000)
			fmt.Fprintf(sw, "%s\t%s\t%s\t%s\t%s\t%s\n",
				s.kind, s.startTime.Format("15:04:05"), durationStr, distanceStr, s.sport, s.subSport)
		}
		sw.Flush()
	}

	fmt.Printf("\n=== RECORDS: %d ===\n", recordCount)
	if !firstRecord.IsZero() {
		fmt.Printf("Span: %s .. %s (%.0fs)\n",
			firstRecord.UTC().Format("15:04:05"), lastRecord.UTC().Format("15:04:05"),
			lastRecord.Sub(firstRecord).Seconds())
	}
	fmt.Println("\nField Statistics:")

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "Field\tCount\tCoverage\tMin\tMax\tAvg")
	fmt.Fprintln(w, "-----\t-----\t--------\t---\t---\t---")
	for name, s := range stats {
		if s.Count > 0 {
			coverage := float64(s.Count) / float64(recordCount) * 100
			fmt.Fprintf(w, "%s\t%d\t%.1f%%\t%.2f\t%.2f\t%.2f\n",
				name, s.Count, coverage, s.Min, s.Max, s.Avg())
		}
	}
	w.Flush()

	if !*skipValidate {
		fmt.Println("\n=== COMPATIBILITY ===")
		fitcheck.New().ValidateBytes(data).WriteReport(os.Stdout)
	}
}
