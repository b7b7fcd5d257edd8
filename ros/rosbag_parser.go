// Package ros reads robot states recorded in ROS bags.
package ros

import (
	"encoding/json"
	"io"
	"os"
	"strings"

	"github.com/edaniels/gobag/rosbag"
	"github.com/go-viper/mapstructure/v2"
	"github.com/pkg/errors"
	"go.viam.com/utils"

	"go.viam.com/wholebody/msgs"
)

// DefaultJointStatesTopic is the topic robot drivers publish joint states on.
const DefaultJointStatesTopic = "/joint_states"

// ReadBag reads the contents of a rosbag into a gobag data structure.
func ReadBag(filename string) (*rosbag.RosBag, error) {
	//nolint:gosec
	f, err := os.Open(filename)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to open input file")
	}
	defer utils.UncheckedErrorFunc(f.Close)

	rb := rosbag.NewRosBag()

	if err := rb.Read(f); err != nil {
		return nil, errors.Wrapf(err, "unable to create ros bag, error")
	}

	return rb, nil
}

// bagKey is the name gobag files the messages of a topic under.
func bagKey(topic string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimPrefix(topic, "/"), "/", "_"))
}

// AllMessagesForTopic returns all messages for a specific topic in the ros bag.
func AllMessagesForTopic(rb *rosbag.RosBag, topic string) ([]map[string]interface{}, error) {
	if err := rb.ParseTopicsToJSON(
		"",
		func(int64) bool { return true },
		func(t string) bool { return bagKey(t) == bagKey(topic) },
		false,
	); err != nil {
		return nil, errors.Wrapf(err, "error while parsing bag to JSON")
	}

	messages := rb.TopicsAsJSON[bagKey(topic)]
	if messages == nil {
		return nil, errors.Errorf("no messages for topic %s", topic)
	}

	all := []map[string]interface{}{}

	for {
		data, err := messages.ReadBytes('\n')
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, err
		}
		message := map[string]interface{}{}
		err = json.Unmarshal(data, &message)
		if err != nil {
			return nil, err
		}

		all = append(all, message)
	}

	return all, nil
}

// jointStateMessage is a sensor_msgs/JointState as laid out by gobag.
type jointStateMessage struct {
	Meta msgs.Time       `json:"meta"`
	Data msgs.JointState `json:"data"`
}

// DecodeJointState converts one bag message into a joint state. The record time becomes the header stamp when the
// message carries none.
func DecodeJointState(message map[string]interface{}) (msgs.JointState, error) {
	var decoded jointStateMessage
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		Result:           &decoded,
	})
	if err != nil {
		return msgs.JointState{}, err
	}
	if err := decoder.Decode(message); err != nil {
		return msgs.JointState{}, errors.Wrap(err, "cannot decode joint state")
	}
	state := decoded.Data
	if len(state.Name) != len(state.Position) {
		return msgs.JointState{}, errors.Errorf("joint state has %d names but %d positions", len(state.Name), len(state.Position))
	}
	if state.Header.Stamp == (msgs.Time{}) {
		state.Header.Stamp = decoded.Meta
	}
	return state, nil
}

// JointStates returns every joint state recorded on topic, in bag order.
func JointStates(rb *rosbag.RosBag, topic string) ([]msgs.JointState, error) {
	messages, err := AllMessagesForTopic(rb, topic)
	if err != nil {
		return nil, err
	}
	states := make([]msgs.JointState, 0, len(messages))
	for i, message := range messages {
		state, err := DecodeJointState(message)
		if err != nil {
			return nil, errors.Wrapf(err, "message %d on %s", i, topic)
		}
		states = append(states, state)
	}
	return states, nil
}

// LatestRobotState reads a bag and returns a robot state holding the last joint state recorded on topic.
func LatestRobotState(filename, topic string) (msgs.RobotState, error) {
	rb, err := ReadBag(filename)
	if err != nil {
		return msgs.RobotState{}, err
	}
	states, err := JointStates(rb, topic)
	if err != nil {
		return msgs.RobotState{}, err
	}
	if len(states) == 0 {
		return msgs.RobotState{}, errors.Errorf("no joint states on %s", topic)
	}
	return msgs.RobotState{JointState: states[len(states)-1]}, nil
}
