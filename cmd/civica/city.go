package main

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"civica/internal/domain"
)

var (
	cityName       string
	cityCountry    string
	cityPopulation int
	cityCitizens   []int64
	cityOrderBy    string
)

var cityCmd = &cobra.Command{
	Use:   "city",
	Short: "Manage cities",
}

var cityAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Create a new city",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		m, closer, err := openManager()
		if err != nil {
			fatal(err)
		}
		defer closer()

		city, err := m.CreateCity(context.Background(), cityName, cityCountry, cityPopulation)
		if err != nil {
			fatal(err)
		}
		fmt.Printf("Created city %d: %s\n", city.ID, city.Name)
	},
}

var cityListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all cities",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		m, closer, err := openManager()
		if err != nil {
			fatal(err)
		}
		defer closer()

		cities, err := m.ListCities(context.Background(), cityOrderBy)
		if err != nil {
			fatal(err)
		}

		if err := renderCityTable(os.Stdout, cities); err != nil {
			fatal(err)
		}
	},
}

var cityShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a city and its citizens",
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

		city, err := m.GetCityWithCitizens(context.Background(), id)
		if err != nil {
			fatal(err)
		}
		if city == nil {
			fatal(fmt.Errorf("city %d not found", id))
		}

		fmt.Printf("City %d: %s, %s (population %d)\n", city.ID, city.Name, city.Country, city.Population)
		if len(city.Citizens) == 0 {
			fmt.Println("No citizens.")
			return
		}

		if err := renderCitizenTable(os.Stdout, city.Citizens); err != nil {
			fatal(err)
		}
	},
}

var citySetCmd = &cobra.Command{
	Use:   "set <id>",
	Short: "Update a city's attributes and citizen set",
	Long: `Updates a city. Flags left unset keep their stored values. The
--citizens flag replaces the whole citizen set: members missing from it
are detached (not deleted), and citizens claimed by another city move.`,
	Args: cobra.ExactArgs(1),
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
		current, err := m.GetCityWithCitizens(ctx, id)
		if err != nil {
			fatal(err)
		}
		if current == nil {
			fatal(fmt.Errorf("city %d not found", id))
		}

		name, country, population := current.Name, current.Country, current.Population
		if cmd.Flags().Changed("name") {
			name = cityName
		}
		if cmd.Flags().Changed("country") {
			country = cityCountry
		}
		if cmd.Flags().Changed("population") {
			population = cityPopulation
		}

		citizenIDs := cityCitizens
		if !cmd.Flags().Changed("citizens") {
			citizenIDs = make([]int64, 0, len(current.Citizens))
			for _, z := range current.Citizens {
				citizenIDs = append(citizenIDs, z.ID)
			}
		}

		city, err := m.UpdateCity(ctx, id, name, country, population, citizenIDs)
		if err != nil {
			fatal(err)
		}
		fmt.Printf("Updated city %d: %s (%d citizens)\n", city.ID, city.Name, len(city.Citizens))
	},
}

var cityRmCmd = &cobra.Command{
	Use:   "rm <id>",
	Short: "Delete a city and its attached citizens",
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

		if err := m.Delete(context.Background(), domain.KindCity, id); err != nil {
			fatal(err)
		}
		fmt.Printf("Deleted city %d\n", id)
	},
}

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", raw)
	}
	return id, nil
}

func init() {
	rootCmd.AddCommand(cityCmd)
	cityCmd.AddCommand(cityAddCmd, cityListCmd, cityShowCmd, citySetCmd, cityRmCmd)

	cityAddCmd.Flags().StringVar(&cityName, "name", "", "City name")
	cityAddCmd.Flags().StringVar(&cityCountry, "country", "", "Country")
	cityAddCmd.Flags().IntVar(&cityPopulation, "population", 0, "Population")
	cityAddCmd.MarkFlagRequired("name")

	cityListCmd.Flags().StringVar(&cityOrderBy, "order-by", "", "Order by attribute (id, name, country, population)")

	citySetCmd.Flags().StringVar(&cityName, "name", "", "City name")
	citySetCmd.Flags().StringVar(&cityCountry, "country", "", "Country")
	citySetCmd.Flags().IntVar(&cityPopulation, "population", 0, "Population")
	citySetCmd.Flags().Int64SliceVar(&cityCitizens, "citizens", nil, "Citizen IDs forming the city's collection")
}
