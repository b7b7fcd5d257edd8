package ros

import (
	"encoding/json"
	"testing"

	"go.viam.com/test"

	"go.viam.com/wholebody/msgs"
)

func TestBagKey(t *testing.T) {
	test.That(t, bagKey("/joint_states"), test.ShouldEqual, "joint_states")
	test.That(t, bagKey("/robot/Joint_States"), test.ShouldEqual, "robot_joint_states")
	test.That(t, bagKey("joint_states"), test.ShouldEqual, "joint_states")
}

func TestDecodeJointState(t *testing.T) {
	raw := `{"meta": {"secs": 12, "nsecs": 500},
		"data": {"header": {"seq": 3, "frame_id": ""},
			"name": ["shoulder_pitch", "elbow_pitch"], "position": [0.1, -0.2], "velocity": [], "effort": []}}`
	message := map[string]interface{}{}
	test.That(t, json.Unmarshal([]byte(raw), &message), test.ShouldBeNil)

	state, err := DecodeJointState(message)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, state.Name, test.ShouldResemble, []string{"shoulder_pitch", "elbow_pitch"})
	test.That(t, state.Position, test.ShouldResemble, []float64{0.1, -0.2})
	test.That(t, state.Header.Seq, test.ShouldEqual, uint32(3))
	test.That(t, state.Header.Stamp, test.ShouldResemble, msgs.Time{Secs: 12, Nsecs: 500})

	message["data"].(map[string]interface{})["position"] = []interface{}{0.1}
	_, err = DecodeJointState(message)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "2 names but 1 positions")
}

func TestReadBagMissingFile(t *testing.T) {
	_, err := ReadBag("/nonexistent/file.bag")
	test.That(t, err, test.ShouldNotBeNil)
	_, err = LatestRobotState("/nonexistent/file.bag", DefaultJointStatesTopic)
	test.That(t, err, test.ShouldNotBeNil)
}
