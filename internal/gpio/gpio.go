// Package gpio reads the configuration reset button.
// The real implementation uses the Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

// Button reads a momentary push button.
type Button interface {
	// Pressed reports whether the button is held down. The line is
	// pulled up and the button shorts it to ground, so raw 0 = pressed.
	Pressed() (bool, error)

	// Close releases GPIO resources.
	Close() error
}

// Chip is the GPIO character device the button lives on.
const Chip = "gpiochip0"
