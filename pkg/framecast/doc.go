// Package framecast provides embeddable video frame senders and receivers
// that move JPEG frames over plain UDP datagrams.
//
// A frame is encoded, wrapped in an envelope carrying its sequence number and
// capture time, checksummed and split into datagrams no larger than the
// configured chunk size. A metadata datagram announcing the chunk count,
// total size and checksum precedes the chunks. The receiver reassembles
// chunks per sequence number, verifies the checksum and hands complete
// frames to its sinks. Lost datagrams are never retransmitted: an incomplete
// frame is discarded once its slot times out.
//
// # Basic Usage
//
//	snd, err := framecast.NewSender(framecast.SenderConfig{Target: "10.0.0.7:12346"})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := snd.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer snd.Stop()
//
// and on the other side:
//
//	rcv, err := framecast.NewReceiver(framecast.ReceiverConfig{
//	    Listen:    ":12346",
//	    OutputDir: "/var/lib/frames",
//	    HTTPAddr:  ":8080",
//	})
//
// # Event Handling
//
// Implement [EventHandler] (embedding [BaseEventHandler] for no-op defaults)
// and pass it via [WithEventHandler]. Events are called synchronously from
// the send loop or the delivery worker and should return quickly.
//
// # Lifecycle States
//
// Senders and receivers share the states [StateStopped], [StateStarting],
// [StateRunning], [StateStopping] and [StateCrashed].
//
// # Plugins
//
// Plugins are initialized on Start in registration order and shut down on
// Stop in reverse order. See plugins/configwatcher and plugins/snapshotcleanup.
package framecast
