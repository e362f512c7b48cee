// Package chip implements gpio.Chip on top of the Linux GPIO character
// device. Other platforms get a stub whose Open always fails.
package chip

// DefaultConsumer labels requested lines when no consumer is configured.
// It shows up in gpioinfo output.
const DefaultConsumer = "mtech-gpio"
