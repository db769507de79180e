package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"civica/internal/domain"
)

var (
	citizenFirst   string
	citizenLast    string
	citizenAge     int
	citizenOrderBy string
)

var citizenCmd = &cobra.Command{
	Use:   "citizen",
	Short: "Manage citizens",
}

var citizenAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Create a new citizen",
	Long: `Creates an unattached citizen. Assign it to a city with
"civica city set --citizens".`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		m, closer, err := openManager()
		if err != nil {
			fatal(err)
		}
		defer closer()

		citizen, err := m.CreateCitizen(context.Background(), citizenFirst, citizenLast, citizenAge)
		if err != nil {
			fatal(err)
		}
		fmt.Printf("Created citizen %d: %s %s\n", citizen.ID, citizen.FirstName, citizen.LastName)
	},
}

var citizenListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all citizens",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		m, closer, err := openManager()
		if err != nil {
			fatal(err)
		}
		defer closer()

		citizens, err := m.ListCitizens(context.Background(), citizenOrderBy)
		if err != nil {
			fatal(err)
		}

		if err := renderCitizenTable(os.Stdout, citizens); err != nil {
			fatal(err)
		}
	},
}

var citizenSetCmd = &cobra.Command{
	Use:   "set <id>",
	Short: "Update a citizen's attributes",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		id, err := parseID(args[0])
		if err != nil {
			fatal(err)
		}

		m, closer, err := openManager()
		if err != nil {
			fatal(err)
		}
		defer closer()

		ctx := context.Background()
		current, err := m.GetCitizen(ctx, id)
		if err != nil {
			fatal(err)
		}
		if current == nil {
			fatal(fmt.Errorf("citizen %d not found", id))
		}

		first, last, age := current.FirstName, current.LastName, current.Age
		if cmd.Flags().Changed("first") {
			first = citizenFirst
		}
		if cmd.Flags().Changed("last") {
			last = citizenLast
		}
		if cmd.Flags().Changed("age") {
			age = citizenAge
		}

		updated, err := m.UpdateCitizen(ctx, id, first, last, age)
		if err != nil {
			fatal(err)
		}
		fmt.Printf("Updated citizen %d: %s %s\n", updated.ID, updated.FirstName, updated.LastName)
	},
}

var citizenRmCmd = &cobra.Command{
	Use:   "rm <id>",
	Short: "Delete a citizen",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		id, err := parseID(args[0])
		if err != nil {
			fatal(err)
		}

		m, closer, err := openManager()
		if err != nil {
			fatal(err)
		}
		defer closer()

		if err := m.Delete(context.Background(), domain.KindCitizen, id); err != nil {
			fatal(err)
		}
		fmt.Printf("Deleted citizen %d\n", id)
	},
}

func init() {
	rootCmd.AddCommand(citizenCmd)
	citizenCmd.AddCommand(citizenAddCmd, citizenListCmd, citizenSetCmd, citizenRmCmd)

	citizenAddCmd.Flags().StringVar(&citizenFirst, "first", "", "First name")
	citizenAddCmd.Flags().StringVar(&citizenLast, "last", "", "Last name")
	citizenAddCmd.Flags().IntVar(&citizenAge, "age", 0, "Age")
	citizenAddCmd.MarkFlagRequired("first")
	citizenAddCmd.MarkFlagRequired("last")

	citizenListCmd.Flags().StringVar(&citizenOrderBy, "order-by", "", "Order by attribute (id, first_name, last_name, age)")

	citizenSetCmd.Flags().StringVar(&citizenFirst, "first", "", "First name")
	citizenSetCmd.Flags().StringVar(&citizenLast, "last", "", "Last name")
	citizenSetCmd.Flags().IntVar(&citizenAge, "age", 0, "Age")
}
