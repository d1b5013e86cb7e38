package client

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(courtsCmd)
	rootCmd.AddCommand(reportCmd)
	reportCmd.Flags().Int("month", 0, "Report month (default current)")
	reportCmd.Flags().Int("year", 0, "Report year (default current)")
}

var courtsCmd = &cobra.Command{
	Use:   "courts",
	Short: "List the courthouses a complaint can refer to",
	Run: func(cmd *cobra.Command, args []string) {
		courts, err := apiClient().Courts(commandContext(cmd))
		if err != nil {
			fmt.Println("Error fetching courts:", err)
			return
		}
		fmt.Println(courtsTable(courts))
	},
}

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Show the monthly referral report",
	Run: func(cmd *cobra.Command, args []string) {
		month, _ := cmd.Flags().GetInt("month")
		year, _ := cmd.Flags().GetInt("year")

		report, err := apiClient().Report(commandContext(cmd), month, year)
		if err != nil {
			fmt.Println("Error fetching report:", err)
			return
		}
		fmt.Printf("Referral report for %s\n", report.ReportDate)
		fmt.Println(reportTable(report.Data))
	},
}
