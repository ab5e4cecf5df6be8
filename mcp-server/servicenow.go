package mcpserver

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	ticketMin       = 1000000
	ticketMax       = 9999999
	submittedStatus = "Submitted"
)

type LaptopRequest struct {
	EmployeeID   string `json:"employee_id"`
	LaptopModel  string `json:"laptop_model"`
	TicketNumber string `json:"ticket_number"`
	Status       string `json:"status"`
	Timestamp    string `json:"timestamp"`
}

// ServiceNow is a mock ticketing system. Every submission opens a new ticket;
// nothing is stored.
type ServiceNow struct {
	mu  sync.Mutex
	rng *rand.Rand
	now func() time.Time
}

// NewServiceNow draws ticket numbers from rng. A nil rng is seeded from the
// clock.
func NewServiceNow(rng *rand.Rand, now func() time.Time) *ServiceNow {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if now == nil {
		now = time.Now
	}
	return &ServiceNow{rng: rng, now: now}
}

func (s *ServiceNow) SubmitLaptopRequest(employeeID, laptopModel string) LaptopRequest {
	s.mu.Lock()
	n := ticketMin + s.rng.Intn(ticketMax-ticketMin+1)
	s.mu.Unlock()

	request := LaptopRequest{
		EmployeeID:   employeeID,
		LaptopModel:  laptopModel,
		TicketNumber: fmt.Sprintf("REQ%d", n),
		Status:       submittedStatus,
		Timestamp:    s.now().Format(isoLocal),
	}
	log.Info().Str("employee_id", employeeID).Str("ticket", request.TicketNumber).Msg("submitted laptop request")
	return request
}
