package client

import (
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func init() {
	rootCmd.AddCommand(stepCmd)
	stepCmd.AddCommand(stepSetCmd)
	stepCmd.AddCommand(stepShowCmd)
	stepCmd.AddCommand(stepClearCmd)

	stepSetCmd.Flags().StringSlice("bool", nil, "Boolean fields as key=true|false")
	stepSetCmd.Flags().String("from-file", "", "Read the step's fields from a YAML file")
}

var stepCmd = &cobra.Command{
	Use:   "step",
	Short: "Fill in the form one step at a time",
}

var stepSetCmd = &cobra.Command{
	Use:   "set <step> [key=value...]",
	Short: "Replace the fields of a step",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		fromFile, _ := cmd.Flags().GetString("from-file")
		bools, _ := cmd.Flags().GetStringSlice("bool")

		fields, err := parseStepFields(args[1:], bools, fromFile)
		if err != nil {
			fmt.Println("Error:", err)
			return
		}

		st, err := loadStateGlobal()
		if err != nil {
			fmt.Println("Error loading form state:", err)
			return
		}
		if err := st.UpdateStep(args[0], fields); err != nil {
			fmt.Println("Error:", err)
			return
		}
		if err := saveStateGlobal(st); err != nil {
			fmt.Println("Error saving form state:", err)
			return
		}
		fmt.Printf("Step %s saved (%d fields)\n", args[0], len(fields))
		if args[0] == poaStep && st.POARequired() && st.POA == nil {
			fmt.Println("A power of attorney document is now required: attach poa <file>")
		}
	},
}

var stepShowCmd = &cobra.Command{
	Use:   "show [step]",
	Short: "Show saved steps",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		st, err := loadStateGlobal()
		if err != nil {
			fmt.Println("Error loading form state:", err)
			return
		}
		ids := st.stepOrder()
		if len(args) == 1 {
			ids = []string{args[0]}
		}
		for _, id := range ids {
			rec := st.GetStep(id)
			if rec == nil {
				fmt.Printf("Step %s: not filled in\n", id)
				continue
			}
			fmt.Printf("Step %s:\n", id)
			keys := make([]string, 0, len(rec))
			for k := range rec {
				keys = append(keys, k)
			}
			slices.Sort(keys)
			for _, k := range keys {
				fmt.Printf("  %s = %s\n", k, stringify(rec[k]))
			}
		}
	},
}

var stepClearCmd = &cobra.Command{
	Use:   "clear [step]",
	Short: "Forget one step, or the whole form",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if len(args) == 0 {
			path, err := statePath()
			if err == nil {
				err = ClearState(path)
			}
			if err != nil {
				fmt.Println("Error clearing form state:", err)
				return
			}
			fmt.Println("Form cleared")
			return
		}

		st, err := loadStateGlobal()
		if err != nil {
			fmt.Println("Error loading form state:", err)
			return
		}
		st.ClearStep(args[0])
		if err := saveStateGlobal(st); err != nil {
			fmt.Println("Error saving form state:", err)
			return
		}
		fmt.Printf("Step %s cleared\n", args[0])
	},
}

// parseStepFields merges a YAML file (if any), key=value pairs and
// key=bool pairs, in that order.
func parseStepFields(pairs, bools []string, fromFile string) (map[string]any, error) {
	fields := make(map[string]any)
	if fromFile != "" {
		data, err := os.ReadFile(fromFile)
		if err != nil {
			return nil, err
		}
		var raw map[string]any
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("parse %s: %w", fromFile, err)
		}
		for k, v := range raw {
			switch v := v.(type) {
			case bool, string:
				fields[k] = v
			case nil:
				fields[k] = ""
			default:
				fields[k] = fmt.Sprint(v)
			}
		}
	}
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("expected key=value, got %q", p)
		}
		fields[k] = v
	}
	for _, p := range bools {
		k, v, ok := strings.Cut(p, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("expected key=true|false, got %q", p)
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", k, err)
		}
		fields[k] = b
	}
	return fields, nil
}
