package server

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/rs/zerolog/log"
	"github.com/wI2L/jsondiff"

	"zoolanding/quickstats/internal/utils"
)

// AddSubscription adds a new subscription for an application's document
func (s *StatsServer) AddSubscription(appName string, w http.ResponseWriter, f http.Flusher, initial []byte, etag string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	subID := utils.NewSubscriptionID()
	if etag == "" {
		etag = utils.ContentETag(initial)
	}

	if _, exists := s.subscriptions[appName]; !exists {
		s.subscriptions[appName] = make(map[string]Subscription)
	}

	s.subscriptions[appName][subID] = Subscription{
		ID:           subID,
		W:            w,
		F:            f,
		LastDocument: initial,
		LastETag:     etag,
	}

	log.Debug().Str("subscription", subID).Str("appName", appName).Msg("added subscription")
	return subID
}

// RemoveSubscription removes a subscription
func (s *StatsServer) RemoveSubscription(appName, subID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if subs, exists := s.subscriptions[appName]; exists {
		delete(subs, subID)
		log.Debug().Str("subscription", subID).Str("appName", appName).Msg("removed subscription")

		// Clean up empty subscription maps
		if len(subs) == 0 {
			delete(s.subscriptions, appName)
		}
	}
}

// notifySubscribers sends an update to all subscribers of a document.
// Disconnecting clients delete from the subscription map concurrently, so the
// fan-out iterates a snapshot taken under the read lock, never the live map.
func (s *StatsServer) notifySubscribers(appName string, newData []byte) {
	s.mu.RLock()
	subs := make([]Subscription, 0, len(s.subscriptions[appName]))
	for _, sub := range s.subscriptions[appName] {
		subs = append(subs, sub)
	}
	s.mu.RUnlock()

	if len(subs) == 0 {
		return
	}

	newETag := utils.ContentETag(newData)
	log.Debug().Int("subscribers", len(subs)).Str("appName", appName).Msg("notifying subscribers")

	for _, sub := range subs {
		if sub.LastETag == newETag {
			// Unchanged content, e.g. a write that round-tripped to the
			// same bytes or a duplicate change notification.
			continue
		}

		if len(sub.LastDocument) == 0 {
			// First update - send full document
			s.sendFullUpdate(sub, newData, newETag)
		} else {
			// Subsequent update - send patch if possible
			err := s.sendPatchUpdate(sub, newData, newETag)
			if err != nil {
				log.Warn().Err(err).Str("appName", appName).Msg("patch update failed, sending full document")
				s.sendFullUpdate(sub, newData, newETag)
			}
		}
	}

	// Record the document each notified subscriber now sees. Subscriptions
	// removed during the fan-out are simply gone from the live map.
	snapshot := make([]byte, len(newData))
	copy(snapshot, newData)

	s.mu.Lock()
	if live, exists := s.subscriptions[appName]; exists {
		for _, sub := range subs {
			if current, ok := live[sub.ID]; ok {
				current.LastDocument = snapshot
				current.LastETag = newETag
				live[sub.ID] = current
			}
		}
	}
	s.mu.Unlock()
}

// sendFullUpdate sends the whole document to a subscriber
func (s *StatsServer) sendFullUpdate(sub Subscription, data []byte, etag string) error {
	// Write headers
	fmt.Fprintf(sub.W, "Version: %s\r\n", etag)
	fmt.Fprintf(sub.W, "Parents: \r\n")
	fmt.Fprintf(sub.W, "Content-Length: %d\r\n", len(data))
	fmt.Fprintf(sub.W, "\r\n")

	// Write body
	if _, err := sub.W.Write(data); err != nil {
		return err
	}

	// Add separator for subscription stream
	fmt.Fprintf(sub.W, "\r\n\r\n\r\n\r\n\r\n")
	sub.F.Flush()
	return nil
}

// sendPatchUpdate sends a patch update to a subscriber
func (s *StatsServer) sendPatchUpdate(sub Subscription, newData []byte, newETag string) error {
	// Calculate patch
	patchOperations, err := jsondiff.CompareJSON(sub.LastDocument, newData)
	if err != nil {
		return err
	}

	if len(patchOperations) == 0 {
		// No changes detected
		return nil
	}

	// Write headers
	fmt.Fprintf(sub.W, "Version: %s\r\n", newETag)
	fmt.Fprintf(sub.W, "Parents: %s\r\n", sub.LastETag)

	// Write patches header if more than one patch
	if len(patchOperations) > 1 {
		fmt.Fprintf(sub.W, "Patches: %d\r\n\r\n", len(patchOperations))
	}

	// Write each patch
	for i, op := range patchOperations {
		if i > 0 {
			fmt.Fprintf(sub.W, "\r\n\r\n")
		}

		valueJSON, _ := json.Marshal(op.Value)
		fmt.Fprintf(sub.W, "Content-Length: %d\r\n", len(valueJSON))
		fmt.Fprintf(sub.W, "Content-Range: %s %s\r\n", op.Type, op.Path)
		fmt.Fprintf(sub.W, "\r\n")
		fmt.Fprintf(sub.W, "%s", string(valueJSON))
	}

	// Add separator for subscription stream
	fmt.Fprintf(sub.W, "\r\n\r\n\r\n\r\n\r\n")
	sub.F.Flush()
	return nil
}
