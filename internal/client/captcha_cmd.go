package client

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
)

const defaultCaptchaImage = "captcha.png"

func init() {
	rootCmd.AddCommand(captchaCmd)
	captchaCmd.AddCommand(captchaNewCmd)
	captchaCmd.AddCommand(captchaSolveCmd)

	captchaNewCmd.Flags().String("out", "", "Where to write the captcha PNG")
}

var captchaCmd = &cobra.Command{
	Use:   "captcha",
	Short: "Request and solve the captcha needed to submit",
}

var captchaNewCmd = &cobra.Command{
	Use:   "new",
	Short: "Request a new captcha image",
	Run: func(cmd *cobra.Command, args []string) {
		out, _ := cmd.Flags().GetString("out")
		st, err := loadStateGlobal()
		if err != nil {
			fmt.Println("Error loading form state:", err)
			return
		}
		if err := fetchCaptcha(commandContext(cmd), st, out); err != nil {
			fmt.Println("Error fetching captcha:", err)
			return
		}
		if err := saveStateGlobal(st); err != nil {
			fmt.Println("Error saving form state:", err)
			return
		}
		fmt.Printf("Captcha image written to %s\n", st.Captcha.ImagePath)
		fmt.Println("Solve it with: captcha solve <code>")
	},
}

var captchaSolveCmd = &cobra.Command{
	Use:   "solve <code>",
	Short: "Record the code shown in the captcha image",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		st, err := loadStateGlobal()
		if err != nil {
			fmt.Println("Error loading form state:", err)
			return
		}
		if st.Captcha == nil {
			fmt.Println("No captcha requested yet. Run 'captcha new' first.")
			return
		}
		st.Captcha.Code = strings.TrimSpace(args[0])
		if err := saveStateGlobal(st); err != nil {
			fmt.Println("Error saving form state:", err)
			return
		}
		fmt.Println("Captcha code saved")
	},
}

func captchaImagePath(out string) string {
	if out != "" {
		return out
	}
	if cfg.CaptchaImage != "" {
		return cfg.CaptchaImage
	}
	if path, err := configPath(); err == nil {
		return filepath.Join(filepath.Dir(path), defaultCaptchaImage)
	}
	return defaultCaptchaImage
}

// fetchCaptcha issues a challenge, writes its image and caches the session.
func fetchCaptcha(ctx context.Context, st *FormState, out string) error {
	sid, img, err := apiClient().Captcha(ctx)
	if err != nil {
		return err
	}
	path := captchaImagePath(out)
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	if err := os.WriteFile(path, img, 0600); err != nil {
		return err
	}
	st.Captcha = &CachedCaptcha{SessionID: sid, ImagePath: path}
	return nil
}

func stdinIsTerminal() bool {
	fd := os.Stdin.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func promptCode(in io.Reader, imagePath string) (string, error) {
	fmt.Printf("Captcha image written to %s\n", imagePath)
	fmt.Print("Enter the code shown in the image: ")
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimSpace(line), nil
}
