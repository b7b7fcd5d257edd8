package cli

import (
	"fmt"
	"math"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/urfave/cli/v2"

	"go.viam.com/wholebody/motionplan/ik"
	"go.viam.com/wholebody/motionplan/wholebody"
	"go.viam.com/wholebody/referenceframe"
	"go.viam.com/wholebody/utils"
)

// InspectAction prints the model as seen by the planner at its zero configuration.
func InspectAction(c *cli.Context) error {
	model, cfg, _, err := setup(c)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "model %q with %d degrees of freedom, rooted at link %q\n",
		model.Name(), model.DoF(), model.LinkName(model.RootLink()))
	fmt.Fprintln(c.App.Writer, jointTable(model))
	fmt.Fprintln(c.App.Writer, linkTable(model))

	q := model.ZeroConfiguration()
	constraints, err := wholebody.BuildConstraints(model, q, nil, cfg)
	if err != nil {
		return err
	}
	for _, constraint := range constraints {
		qs, ok := constraint.(ik.QuasiStaticConstraint)
		if !ok {
			continue
		}
		polygon, com, err := ik.SupportPolygon(model, q, qs)
		if err != nil {
			return err
		}
		fmt.Fprintf(c.App.Writer, "center of mass: X:%.3f, Y:%.3f, Z:%.3f\n", com.X, com.Y, com.Z)
		t := table.NewWriter()
		t.SetTitle("support polygon")
		t.AppendHeader(table.Row{"#", "X", "Y"})
		for i, pt := range polygon {
			t.AppendRow(table.Row{i + 1, fmt.Sprintf("%.3f", pt.X), fmt.Sprintf("%.3f", pt.Y)})
		}
		fmt.Fprintln(c.App.Writer, t.Render())
	}
	return nil
}

// jointTable lists every configuration coordinate with its limits.
func jointTable(model *referenceframe.Model) string {
	t := table.NewWriter()
	t.SetTitle("joints")
	t.AppendHeader(table.Row{"#", "Name", "Min", "Max"})
	limits := model.Limits()
	for i, name := range model.PositionNames() {
		t.AppendRow(table.Row{i, name, formatLimit(limits[i].Min), formatLimit(limits[i].Max)})
	}
	return t.Render()
}

func formatLimit(v float64) string {
	if math.IsInf(v, 0) {
		return "-"
	}
	return fmt.Sprintf("%.2f (%.1f°)", v, utils.RadToDeg(v))
}

func linkTable(model *referenceframe.Model) string {
	t := table.NewWriter()
	t.SetTitle("links")
	t.AppendHeader(table.Row{"Name", "Mass", "Center of mass", "Contact points"})
	for id := 0; id < model.NumLinks(); id++ {
		link := model.Link(id)
		t.AppendRow(table.Row{
			link.Name,
			fmt.Sprintf("%.2f", link.Mass),
			fmt.Sprintf("X:%.3f, Y:%.3f, Z:%.3f", link.CenterOfMass.X, link.CenterOfMass.Y, link.CenterOfMass.Z),
			len(link.ContactPoints),
		})
	}
	return t.Render()
}
