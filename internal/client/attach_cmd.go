package client

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(attachCmd)
	attachCmd.AddCommand(attachAddCmd)
	attachCmd.AddCommand(attachRemoveCmd)
	attachCmd.AddCommand(attachListCmd)
	attachCmd.AddCommand(attachPOACmd)

	attachPOACmd.Flags().Bool("clear", false, "Remove the power of attorney document")
}

var attachCmd = &cobra.Command{
	Use:   "attach",
	Short: "Manage supporting documents",
}

var attachAddCmd = &cobra.Command{
	Use:   "add <file>...",
	Short: "Add supporting documents",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		batch := make([]Attachment, 0, len(args))
		for _, p := range args {
			a, err := NewAttachment(p, cfg.ViewportWidth)
			if err != nil {
				fmt.Println("Error reading file:", err)
				return
			}
			batch = append(batch, a)
		}

		st, err := loadStateGlobal()
		if err != nil {
			fmt.Println("Error loading form state:", err)
			return
		}
		added, err := st.AddAttachments(batch...)
		switch {
		case errors.Is(err, ErrTotalSizeExceeded):
			fmt.Println("The total size of the files cannot exceed 50MB. Nothing was added.")
			return
		case err != nil:
			fmt.Println("Some files were not added:", err)
		}
		if err := saveStateGlobal(st); err != nil {
			fmt.Println("Error saving form state:", err)
			return
		}
		for _, a := range added {
			fmt.Printf("Added %s (%s)\n", a.DisplayName, a.DisplaySize)
		}
	},
}

var attachRemoveCmd = &cobra.Command{
	Use:   "rm <index>",
	Short: "Remove a supporting document by its list index",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		i, err := strconv.Atoi(args[0])
		if err != nil {
			fmt.Println("Invalid index:", args[0])
			return
		}
		st, err := loadStateGlobal()
		if err != nil {
			fmt.Println("Error loading form state:", err)
			return
		}
		removed, err := st.RemoveAttachmentAt(i)
		if err != nil {
			fmt.Println("Error:", err)
			return
		}
		if err := saveStateGlobal(st); err != nil {
			fmt.Println("Error saving form state:", err)
			return
		}
		fmt.Printf("Removed %s\n", removed.FileName)
	},
}

var attachListCmd = &cobra.Command{
	Use:   "list",
	Short: "List attached documents",
	Run: func(cmd *cobra.Command, args []string) {
		st, err := loadStateGlobal()
		if err != nil {
			fmt.Println("Error loading form state:", err)
			return
		}
		atts := st.ListAttachments()
		poa := st.GetPoaAttachment()
		if len(atts) == 0 && poa == nil {
			fmt.Println("No documents attached")
			return
		}
		fmt.Println(attachmentsTable(atts, poa))
		if !st.RecomputeStep4Validity() {
			fmt.Println("A power of attorney document is still required.")
		}
	},
}

var attachPOACmd = &cobra.Command{
	Use:   "poa [file]",
	Short: "Set or clear the power of attorney document",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		clearPOA, _ := cmd.Flags().GetBool("clear")
		if !clearPOA && len(args) == 0 {
			fmt.Println("Specify a file or --clear")
			return
		}

		st, err := loadStateGlobal()
		if err != nil {
			fmt.Println("Error loading form state:", err)
			return
		}
		if clearPOA {
			st.ClearPoaAttachment()
		} else {
			a, err := NewAttachment(args[0], cfg.ViewportWidth)
			if err != nil {
				fmt.Println("Error reading file:", err)
				return
			}
			if err := st.SetPoaAttachment(a); err != nil {
				fmt.Println("Error:", err)
				return
			}
		}
		if err := saveStateGlobal(st); err != nil {
			fmt.Println("Error saving form state:", err)
			return
		}
		if poa := st.GetPoaAttachment(); poa != nil {
			fmt.Printf("Power of attorney: %s (%s)\n", poa.DisplayName, poa.DisplaySize)
		} else {
			fmt.Println("Power of attorney cleared")
		}
	},
}
