// R9CTL - A TCP query client and scan scheduler for lock-in amplifiers
// attached to an RHK R9 STM controller.
// Copyright (C) 2023 R9CTL Authors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

package main

import (
	"encoding/json"
	"encoding/xml"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"r9ctl/config"
	"r9ctl/csv"
	"r9ctl/lockin"
)

var serverAddr = flag.String("server", lockin.DefaultAddr, "address or hostname of the lock-in amplifier")

var command = flag.String("command", lockin.DefaultCommand, "query command written each poll, terminator excluded")

var interval = flag.Duration("interval", time.Second, "time between polls, ex. 500ms")

var count = flag.Int("count", -1, "number of readings to take, -1 for no limit")

var single = flag.Bool("single", false, "one shot execution, take a single reading and exit")

var timeLimit = flag.Duration("duration", 0, "time to run for, 0 for infinite, ex. 1h5m10s")

var format = flag.String("format", "plain", "reading output format: plain, csv, json, or xml")

var configFile = flag.String("config", "", "path to yaml configuration file")

var simulate = flag.Bool("simulate", false, "serve an in-process simulated instrument and poll it")

var version = flag.Bool("version", false, "display build date and commit hash")

var encoder Encoder

// EnvOverride applies R9CTL_<FLAGNAME> environment variables to any flag the
// user did not set explicitly.
func EnvOverride() {
	flag.VisitAll(func(f *flag.Flag) {
		envName := "R9CTL_" + strings.ToUpper(f.Name)
		flagValue := os.Getenv(envName)
		if flagValue != "" {
			if err := flag.Set(f.Name, flagValue); err != nil {
				log.Printf(
					"Environment variable %q failed to override flag %q with value %q: %q\n",
					envName, f.Name, flagValue, err,
				)
			} else {
				log.Printf("Environment variable %q overrides flag %q with %q\n", envName, f.Name, flagValue)
			}
		}
	})
}

// HandleFlags folds explicitly set flags into the config (flags beat the
// file) and builds the output encoder.
func HandleFlags(cfg *config.Config) {
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "server":
			cfg.Instrument.Addr = *serverAddr
		case "command":
			cfg.Instrument.Command = *command
		case "interval":
			cfg.Poll.Interval = *interval
		case "count":
			cfg.Poll.Count = *count
		}
	})

	*format = strings.ToLower(*format)
	switch *format {
	case "plain":
		encoder = PlainEncoder{}
	case "csv":
		encoder = csv.NewEncoder(os.Stdout)
	case "json":
		encoder = json.NewEncoder(os.Stdout)
	case "xml":
		encoder = xml.NewEncoder(os.Stdout)
	default:
		log.Fatalf("invalid format: %q", *format)
	}
}

// JSON, XML and CSV encoders all implement this interface so we can simplify
// reading output formatting.
type Encoder interface {
	Encode(interface{}) error
}

type PlainEncoder struct{}

func (PlainEncoder) Encode(msg interface{}) (err error) {
	_, err = fmt.Println(msg)
	return
}
