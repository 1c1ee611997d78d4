package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
)

// ActivityEvent mirrors the consumer's wire format.
type ActivityEvent struct {
	Type     string    `json:"type"`
	PlayerID uuid.UUID `json:"player_id"`
	Name     string    `json:"name,omitempty"`
	From     *blockPos `json:"from,omitempty"`
	To       *blockPos `json:"to,omitempty"`
	At       time.Time `json:"at"`
}

type blockPos struct {
	X int `json:"x"`
	Y int `json:"y"`
	Z int `json:"z"`
}

var playerPrefixes = []string{
	"Phoenix", "Shadow", "Thunder", "Storm", "Blaze", "Ninja", "Dragon", "Wolf", "Hawk", "Viper",
	"Ghost", "Titan", "Frost", "Cyber", "Nova", "Raven", "Omega", "Alpha", "Delta", "Sigma",
	"Ace", "Bolt", "Crash", "Dash", "Edge", "Flash", "Glitch", "Haze", "Ion", "Jade",
	"Knight", "Luna", "Mystic", "Neon", "Orion", "Pulse", "Quantum", "Rebel", "Spark", "Turbo",
}

func playerName(idx int) string {
	prefixIdx := idx % len(playerPrefixes)
	suffix := idx/len(playerPrefixes) + 1
	return fmt.Sprintf("%s%d", playerPrefixes[prefixIdx], suffix)
}

// simPlayer is one simulated online player.
type simPlayer struct {
	id   uuid.UUID
	name string
	pos  blockPos
}

func main() {
	// Command line flags
	brokers := flag.String("brokers", "localhost:9094", "Kafka brokers (comma-separated)")
	topic := flag.String("topic", "player-activity", "Kafka topic")
	totalPlayers := flag.Int("players", 200, "Number of simulated players")
	eventsPerSecond := flag.Int("rate", 100, "Activity events per second")
	duration := flag.Duration("duration", 0, "Duration to run (0 = forever)")
	flag.Parse()

	brokerList := strings.Split(*brokers, ",")

	fmt.Println("Activity producer")
	fmt.Printf("  Brokers:     %s\n", *brokers)
	fmt.Printf("  Topic:       %s\n", *topic)
	fmt.Printf("  Players:     %d\n", *totalPlayers)
	fmt.Printf("  Events/sec:  %d\n", *eventsPerSecond)
	fmt.Println()

	// Configure Sarama producer
	config := sarama.NewConfig()
	config.Producer.RequiredAcks = sarama.WaitForLocal
	config.Producer.Compression = sarama.CompressionSnappy
	config.Producer.Flush.Frequency = 100 * time.Millisecond
	config.Producer.Flush.Messages = 100
	config.Producer.Return.Successes = true
	config.Producer.Return.Errors = true

	producer, err := sarama.NewAsyncProducer(brokerList, config)
	if err != nil {
		log.Fatalf("Failed to create producer: %v", err)
	}
	defer producer.Close()

	// Handle producer errors and successes
	var successCount, errorCount int64
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		for range producer.Successes() {
			atomic.AddInt64(&successCount, 1)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		for err := range producer.Errors() {
			atomic.AddInt64(&errorCount, 1)
			log.Printf("Producer error: %v", err)
		}
	}()

	// Handle shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	done := make(chan struct{})

	sendEvent := func(event ActivityEvent) {
		data, err := json.Marshal(event)
		if err != nil {
			log.Printf("Failed to marshal event: %v", err)
			return
		}

		msg := &sarama.ProducerMessage{
			Topic: *topic,
			Key:   sarama.StringEncoder(event.PlayerID.String()),
			Value: sarama.ByteEncoder(data),
		}

		select {
		case producer.Input() <- msg:
		case <-done:
			return
		}
	}

	// Bring all simulated players online
	fmt.Printf("Joining %d players...\n", *totalPlayers)
	players := make([]*simPlayer, *totalPlayers)
	for i := range players {
		players[i] = &simPlayer{
			id:   uuid.New(),
			name: playerName(i),
			pos:  blockPos{X: rand.Intn(200) - 100, Y: 64, Z: rand.Intn(200) - 100},
		}
		sendEvent(ActivityEvent{
			Type:     "join",
			PlayerID: players[i].id,
			Name:     players[i].name,
			At:       time.Now(),
		})
	}
	fmt.Printf("All players joined\n\n")
	fmt.Println("Press Ctrl+C to stop")
	fmt.Println()

	interval := time.Second / time.Duration(*eventsPerSecond)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	statsTicker := time.NewTicker(5 * time.Second)
	defer statsTicker.Stop()

	var endTime time.Time
	if *duration > 0 {
		endTime = time.Now().Add(*duration)
	}

	shutdown := func() {
		// Take everyone offline so the tracker persists their sessions
		for _, p := range players {
			sendEvent(ActivityEvent{Type: "leave", PlayerID: p.id, At: time.Now()})
		}
		close(done)
		producer.AsyncClose()
		wg.Wait()
		fmt.Printf("\nCompleted. Sent: %d, Errors: %d\n", atomic.LoadInt64(&successCount), atomic.LoadInt64(&errorCount))
	}

	var eventCount int64

	for {
		select {
		case <-sigChan:
			fmt.Println("\n\nShutting down...")
			shutdown()
			return

		case <-ticker.C:
			if *duration > 0 && time.Now().After(endTime) {
				fmt.Println("\n\nDuration reached, shutting down...")
				shutdown()
				return
			}

			p := players[rand.Intn(len(players))]

			// Mostly movement, some interactions, the occasional idler
			// who emits nothing and will trip the auto-AFK rules.
			switch roll := rand.Intn(100); {
			case roll < 70:
				from := p.pos
				p.pos.X += rand.Intn(3) - 1
				p.pos.Z += rand.Intn(3) - 1
				sendEvent(ActivityEvent{
					Type:     "move",
					PlayerID: p.id,
					From:     &from,
					To:       &p.pos,
					At:       time.Now(),
				})
			case roll < 90:
				sendEvent(ActivityEvent{
					Type:     "interact",
					PlayerID: p.id,
					At:       time.Now(),
				})
			default:
				// Idle this tick
			}
			atomic.AddInt64(&eventCount, 1)

		case <-statsTicker.C:
			events := atomic.LoadInt64(&eventCount)
			success := atomic.LoadInt64(&successCount)
			errors := atomic.LoadInt64(&errorCount)
			fmt.Printf("[%s] Events: %d | Sent: %d | Errors: %d\n",
				time.Now().Format("15:04:05"),
				events,
				success,
				errors,
			)
		}
	}
}
