package cli

import (
	"github.com/pkg/errors"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"go.viam.com/wholebody/msgs"
)

// plotTrajectory draws one line per joint of positions against time.
func plotTrajectory(traj msgs.JointTrajectory, path string) error {
	if len(traj.Points) == 0 {
		return errors.New("trajectory has no points")
	}
	p := plot.New()
	p.Title.Text = "joint positions"
	p.X.Label.Text = "time (s)"
	p.Y.Label.Text = "position (rad or m)"
	p.Add(plotter.NewGrid())

	for j, name := range traj.JointNames {
		xys := make(plotter.XYs, len(traj.Points))
		for i, pt := range traj.Points {
			xys[i].X = pt.TimeFromStart
			xys[i].Y = pt.Positions[j]
		}
		line, err := plotter.NewLine(xys)
		if err != nil {
			return err
		}
		line.Color = plotutil.Color(j)
		line.Dashes = plotutil.Dashes(j / len(plotutil.DefaultColors))
		p.Add(line)
		p.Legend.Add(name, line)
	}
	return p.Save(8*vg.Inch, 5*vg.Inch, path)
}
