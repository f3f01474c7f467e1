package queue

import (
	amqp "github.com/rabbitmq/amqp091-go"
)

// Message wraps a job with its delivery state so consumers can ack or nack.
type Message struct {
	Job         *Job
	DeliveryTag uint64
	Channel     *amqp.Channel
}

// Ack acknowledges the message
func (m *Message) Ack() error {
	return m.Channel.Ack(m.DeliveryTag, false)
}

// Nack negatively acknowledges the message
func (m *Message) Nack(requeue bool) error {
	return m.Channel.Nack(m.DeliveryTag, false, requeue)
}

// GetJob returns the job carried by the message
func (m *Message) GetJob() *Job {
	return m.Job
}

// Ensure Message implements the interface
var _ MessageInterface = (*Message)(nil)
