package main

import (
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"

	"civica/internal/domain"
)

// renderCityTable writes cities as a table, one row per city with its
// citizen count.
func renderCityTable(w io.Writer, cities []*domain.City) error {
	table := tablewriter.NewWriter(w)
	table.Header("ID", "Name", "Country", "Population", "Citizens")
	for _, c := range cities {
		err := table.Append([]string{
			strconv.FormatInt(c.ID, 10),
			c.Name,
			c.Country,
			strconv.Itoa(c.Population),
			strconv.Itoa(len(c.Citizens)),
		})
		if err != nil {
			return err
		}
	}
	return table.Render()
}

// renderCitizenTable writes citizens as a table. An unattached citizen
// shows "-" in the city column.
func renderCitizenTable(w io.Writer, citizens []*domain.Citizen) error {
	table := tablewriter.NewWriter(w)
	table.Header("ID", "First name", "Last name", "Age", "City")
	for _, z := range citizens {
		city := "-"
		if z.CityID != 0 {
			city = strconv.FormatInt(z.CityID, 10)
		}
		err := table.Append([]string{
			strconv.FormatInt(z.ID, 10),
			z.FirstName,
			z.LastName,
			strconv.Itoa(z.Age),
			city,
		})
		if err != nil {
			return err
		}
	}
	return table.Render()
}
