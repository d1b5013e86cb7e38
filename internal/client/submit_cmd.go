package client

import (
	"errors"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// invalidCaptcha is the server's rejection for a wrong, expired or reused captcha.
const invalidCaptcha = "Invalid captcha."

func init() {
	rootCmd.AddCommand(submitCmd)
}

var submitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Send the completed complaint",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := commandContext(cmd)
		st, err := loadStateGlobal()
		if err != nil {
			fmt.Println("Error loading form state:", err)
			return
		}

		pkg, err := st.ComposePackage()
		if errors.Is(err, ErrPOARequired) {
			color.Red("The complaint is filed on someone's behalf: attach a power of attorney with 'attach poa <file>'.")
			return
		}
		if err != nil {
			fmt.Println("Error:", err)
			return
		}

		if st.Captcha == nil || st.Captcha.Code == "" {
			if st.Captcha == nil {
				if err := fetchCaptcha(ctx, st, ""); err != nil {
					fmt.Println("Error fetching captcha:", err)
					return
				}
			}
			if !stdinIsTerminal() {
				if err := saveStateGlobal(st); err != nil {
					fmt.Println("Error saving form state:", err)
					return
				}
				fmt.Printf("Captcha image written to %s\n", st.Captcha.ImagePath)
				fmt.Println("Solve it with 'captcha solve <code>' and run submit again.")
				return
			}
			code, err := promptCode(os.Stdin, st.Captcha.ImagePath)
			if err != nil {
				fmt.Println("Error reading captcha code:", err)
				return
			}
			st.Captcha.Code = code
		}

		result, err := apiClient().Submit(ctx, pkg, st.Captcha.SessionID, st.Captcha.Code)
		if err != nil {
			fmt.Println("Error submitting complaint:", err)
			return
		}

		if result.Accepted == nil {
			color.Red("Submission rejected: %s", result.Rejection)
			if result.Rejection == invalidCaptcha {
				// Consumed or expired either way; the next submit needs a fresh one.
				st.Captcha = nil
			}
			if err := saveStateGlobal(st); err != nil {
				fmt.Println("Error saving form state:", err)
			}
			return
		}

		color.Green("✓ %s", result.Accepted.Message)
		fmt.Printf("Submission ID: %s\n", result.Accepted.SubmissionID)
		for _, name := range result.Accepted.UploadedFiles {
			fmt.Printf("  - %s\n", name)
		}
		path, err := statePath()
		if err == nil {
			err = ClearState(path)
		}
		if err != nil {
			fmt.Println("Warning: failed to clear form state:", err)
		}
	},
}
