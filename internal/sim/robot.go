// Package sim provides a simulated robot answering the command vocabulary,
// used by robotsim and by end-to-end tests.
package sim

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"
	"sync"

	"github.com/arloliu/go-robolink/command"
	"github.com/arloliu/go-robolink/responder"
)

// PingReply is the ACK payload of PING.
const PingReply = "PONG"

// ErrStopped is returned by motion commands after an emergency stop until
// a new speed is set.
var ErrStopped = &command.ReasonError{Reason: command.ReasonFailure, Err: errors.New("sim: robot is stopped")}

// Robot is a simulated differential drive robot with a sonar and two IR
// sensors. It is safe for concurrent use.
type Robot struct {
	mu       sync.Mutex
	speed    int
	odometer int // centimeters
	heading  int // degrees in [0, 360)
	stopped  bool
	sonarCM  int
	irLeft   bool
	irRight  bool
	noise    int
	rng      *rand.Rand
	commands func() []string
}

// Option configures a Robot.
type Option func(*Robot)

// WithSonar sets the simulated sonar distance.
func WithSonar(cm int) Option {
	return func(r *Robot) { r.sonarCM = cm }
}

// WithSonarNoise adds uniform noise of +/- cm to each sonar reading.
func WithSonarNoise(cm int, seed uint64) Option {
	return func(r *Robot) {
		r.noise = cm
		r.rng = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	}
}

// WithIR sets the simulated IR sensor states.
func WithIR(left, right bool) Option {
	return func(r *Robot) { r.irLeft, r.irRight = left, right }
}

// New creates a robot at rest.
func New(opts ...Option) *Robot {
	r := &Robot{sonarCM: 100}
	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Register binds every command of the vocabulary to the robot.
func (r *Robot) Register(d *responder.Dispatcher) {
	r.mu.Lock()
	r.commands = d.Commands
	r.mu.Unlock()

	d.Register(command.Ping, r.ping)
	d.Register(command.Help, r.help)
	d.Register(command.Status, r.status)
	d.Register(command.Speed, r.setSpeed)
	d.Register(command.Move, r.move)
	d.Register(command.Rotate, r.rotate)
	d.Register(command.Stop, r.stop)
	d.Register(command.Sonar, r.sonar)
	d.Register(command.IR, r.ir)
}

// Odometer returns the distance travelled in centimeters.
func (r *Robot) Odometer() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.odometer
}

// Heading returns the heading in degrees, in [0, 360).
func (r *Robot) Heading() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.heading
}

// Speed returns the current PWM speed.
func (r *Robot) Speed() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.speed
}

func (r *Robot) ping(string) (string, error) {
	return PingReply, nil
}

// help lists the registered commands on one line; a frame payload cannot
// carry line breaks.
func (r *Robot) help(string) (string, error) {
	r.mu.Lock()
	commands := r.commands
	r.mu.Unlock()

	if commands == nil {
		return strings.Join(command.Names(), ","), nil
	}

	return strings.Join(commands(), ","), nil
}

func (r *Robot) status(string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return fmt.Sprintf("V=%d ODO=%d HDG=%d STOP=%d", r.speed, r.odometer, r.heading, b2i(r.stopped)), nil
}

func (r *Robot) setSpeed(payload string) (string, error) {
	v, err := strconv.Atoi(payload)
	if err != nil {
		return "", &command.ReasonError{Reason: command.ReasonBadSpeed, Err: err}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.speed = v
	r.stopped = false

	return "OK", nil
}

func (r *Robot) move(payload string) (string, error) {
	cm, err := strconv.Atoi(payload)
	if err != nil {
		return "", &command.ReasonError{Reason: command.ReasonBadMove, Err: err}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.stopped {
		return "", ErrStopped
	}
	r.odometer += cm

	return fmt.Sprintf("ODO=%d", r.odometer), nil
}

func (r *Robot) rotate(payload string) (string, error) {
	deg, err := strconv.Atoi(payload)
	if err != nil {
		return "", &command.ReasonError{Reason: command.ReasonBadRotate, Err: err}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.stopped {
		return "", ErrStopped
	}
	r.heading = ((r.heading+deg)%360 + 360) % 360

	return fmt.Sprintf("HDG=%d", r.heading), nil
}

func (r *Robot) stop(string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.speed = 0
	r.stopped = true

	return "STOPPED", nil
}

func (r *Robot) sonar(string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cm := r.sonarCM
	if r.noise > 0 && r.rng != nil {
		cm += r.rng.IntN(2*r.noise+1) - r.noise
	}
	cm = max(cm, 0)

	return strconv.Itoa(cm), nil
}

func (r *Robot) ir(string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return fmt.Sprintf("L=%d R=%d", b2i(r.irLeft), b2i(r.irRight)), nil
}

func b2i(b bool) int {
	if b {
		return 1
	}

	return 0
}
