// Package cli contains the wbik command line tool, which plans whole-body configurations and trajectories for a
// robot model from JSON requests.
package cli

import (
	"encoding/json"
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"

	"go.viam.com/wholebody/logging"
	"go.viam.com/wholebody/motionplan/wholebody"
	"go.viam.com/wholebody/msgs"
	"go.viam.com/wholebody/referenceframe"
	"go.viam.com/wholebody/ros"
)

const (
	// Flags.
	flagDebug        = "debug"
	flagQuiet        = "quiet"
	flagModel        = "model"
	flagFloatingBase = "floating-base"
	flagConfig       = "config"
	flagRequest      = "request"
	flagBag          = "bag"
	flagTopic        = "topic"
	flagOutput       = "output"
	flagPlot         = "plot"
)

func modelFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:     flagModel,
			Aliases:  []string{"m"},
			Required: true,
			Usage:    "robot model `FILE`, either model JSON or URDF",
		},
		&cli.StringFlag{
			Name:  flagFloatingBase,
			Usage: "attach the model root to the world through a floating joint `NAME`",
		},
		&cli.StringFlag{
			Name:    flagConfig,
			Aliases: []string{"c"},
			Usage:   "planner configuration JSON `FILE`",
		},
	}
}

func requestFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:     flagRequest,
			Aliases:  []string{"r"},
			Required: true,
			Usage:    "request JSON `FILE`",
		},
		&cli.StringFlag{
			Name:  flagBag,
			Usage: "take the robot state from the last joint state message in this rosbag `FILE`",
		},
		&cli.StringFlag{
			Name:  flagTopic,
			Value: ros.DefaultJointStatesTopic,
			Usage: "joint state topic of the rosbag",
		},
		&cli.StringFlag{
			Name:    flagOutput,
			Aliases: []string{"o"},
			Usage:   "write the result to `FILE` instead of stdout",
		},
	}
}

// NewApp returns a new app with the wbik commands, Writer set to out, and ErrWriter set to errOut.
func NewApp(out, errOut io.Writer) *cli.App {
	return &cli.App{
		Name:            "wbik",
		Usage:           "whole-body inverse kinematics for legged robots",
		HideHelpCommand: true,
		Writer:          out,
		ErrWriter:       errOut,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    flagDebug,
				Aliases: []string{"vvv"},
				Usage:   "enable debug logging",
			},
			&cli.BoolFlag{
				Name:    flagQuiet,
				Aliases: []string{"q"},
				Usage:   "discard all logging",
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "solve",
				Usage:     "find a configuration that places links at target poses",
				UsageText: "wbik solve --model <model> --request <ik request> [other options]",
				Flags:     append(modelFlags(), requestFlags()...),
				Action:    SolveAction,
			},
			{
				Name:      "trajectory",
				Usage:     "plan a joint trajectory through timed waypoints",
				UsageText: "wbik trajectory --model <model> --request <trajectory request> [other options]",
				Flags: append(append(modelFlags(), requestFlags()...),
					&cli.StringFlag{
						Name:  flagPlot,
						Usage: "render joint positions over time to a PNG `FILE`",
					},
				),
				Action: TrajectoryAction,
			},
			{
				Name:      "inspect",
				Usage:     "print the joints, links and support polygon of a model",
				UsageText: "wbik inspect --model <model> [--config <planner config>]",
				Flags:     modelFlags(),
				Action:    InspectAction,
			},
		},
	}
}

// newLogger logs to the error writer of the app so that results written to stdout stay machine readable.
func newLogger(c *cli.Context) logging.Logger {
	switch {
	case c.Bool(flagQuiet):
		return logging.NewBlankLogger("wbik")
	case c.Bool(flagDebug):
		return logging.NewWriterLogger("wbik", logging.DEBUG, c.App.ErrWriter)
	default:
		return logging.NewWriterLogger("wbik", logging.INFO, c.App.ErrWriter)
	}
}

func loadModel(c *cli.Context) (*referenceframe.Model, error) {
	return referenceframe.ParseModelFile(c.String(flagModel), c.String(flagFloatingBase))
}

// loadPlannerConfig decodes the --config file over the default planner configuration.
func loadPlannerConfig(c *cli.Context) (*wholebody.PlannerConfig, error) {
	path := c.String(flagConfig)
	if path == "" {
		return wholebody.NewDefaultPlannerConfig(), nil
	}
	attrs := map[string]interface{}{}
	if err := msgs.ReadJSONFile(path, &attrs); err != nil {
		return nil, err
	}
	return wholebody.FromAttributes(attrs)
}

// readRequest decodes the --request file into req and, when --bag is set, returns the robot state recorded there.
func readRequest(c *cli.Context, req interface{}) (*msgs.RobotState, error) {
	if err := msgs.ReadJSONFile(c.String(flagRequest), req); err != nil {
		return nil, err
	}
	bag := c.String(flagBag)
	if bag == "" {
		return nil, nil
	}
	state, err := ros.LatestRobotState(bag, c.String(flagTopic))
	if err != nil {
		return nil, errors.Wrap(err, "cannot read robot state from rosbag")
	}
	return &state, nil
}

func writeResult(c *cli.Context, result interface{}) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	if path := c.String(flagOutput); path != "" {
		//nolint:gosec
		return os.WriteFile(path, data, 0o644)
	}
	_, err = c.App.Writer.Write(data)
	return err
}
