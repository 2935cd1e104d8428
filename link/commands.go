package link

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/arloliu/go-robolink/command"
)

// Do parses a "CMD" or "CMD:payload" token, validates it locally and calls
// it. Unknown commands are sent as-is so the device can answer BAD_CMD.
func (c *Client) Do(ctx context.Context, token string) (string, error) {
	cmd, payload := command.ParseToken(token)
	if spec, ok := command.Lookup(cmd); ok {
		p, err := spec.Validate(payload)
		if err != nil {
			return "", err
		}
		payload = p
	}

	return c.Call(ctx, cmd, payload)
}

// Ping checks that the device answers.
func (c *Client) Ping(ctx context.Context) (string, error) {
	return c.Call(ctx, command.Ping, "")
}

// Help returns the device's command list.
func (c *Client) Help(ctx context.Context) (string, error) {
	return c.Call(ctx, command.Help, "")
}

// Status returns the device status text.
func (c *Client) Status(ctx context.Context) (string, error) {
	return c.Call(ctx, command.Status, "")
}

// SetSpeed sets the linear speed (PWM duty, 0..255).
func (c *Client) SetSpeed(ctx context.Context, pwm uint8) (string, error) {
	return c.Call(ctx, command.Speed, strconv.Itoa(int(pwm)))
}

// Move drives cm centimeters; negative values drive backwards.
func (c *Client) Move(ctx context.Context, cm int) (string, error) {
	return c.validated(ctx, command.Move, strconv.Itoa(cm))
}

// Rotate turns deg degrees; positive is clockwise.
func (c *Client) Rotate(ctx context.Context, deg int) (string, error) {
	return c.validated(ctx, command.Rotate, strconv.Itoa(deg))
}

// Stop performs an emergency stop.
func (c *Client) Stop(ctx context.Context) (string, error) {
	return c.Call(ctx, command.Stop, "")
}

// Sonar returns the sonar distance in centimeters.
func (c *Client) Sonar(ctx context.Context) (int, error) {
	result, err := c.Call(ctx, command.Sonar, "")
	if err != nil {
		return 0, err
	}

	cm, err := strconv.Atoi(strings.TrimSpace(result))
	if err != nil {
		return 0, fmt.Errorf("link: invalid sonar reading %q", result)
	}

	return cm, nil
}

// IR returns the IR sensor reading text.
func (c *Client) IR(ctx context.Context) (string, error) {
	return c.Call(ctx, command.IR, "")
}

func (c *Client) validated(ctx context.Context, cmd, payload string) (string, error) {
	p, err := command.Validate(cmd, payload)
	if err != nil {
		return "", err
	}

	return c.Call(ctx, cmd, p)
}
