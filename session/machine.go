package session

import (
	"errors"

	"github.com/pion/webrtc/v4"

	"telecall/negotiation"
	"telecall/signal"
)

// Transition applies ev to s and returns the next state with the effects
// to run, in order. It performs no I/O.
func Transition(s State, ev Event) (State, []Effect) {
	if s.Conn == StateEnded {
		return s, afterEnd(ev)
	}

	switch e := ev.(type) {
	case Mount:
		if s.Conn != StateInitializing {
			return s, nil
		}
		s.Conn = StateAcquiringMedia
		s.Status = StatusAcquiring
		return s, []Effect{AcquireMedia{}}

	case MediaAcquired:
		s.Conn = StateMediaReady
		s.Status = StatusJoining
		effects := []Effect{ConnectSignaling{}}
		// Tracks start enabled; replay toggles made while acquiring.
		if !s.AudioEnabled {
			effects = append(effects, SetTrackEnabled{Kind: webrtc.RTPCodecTypeAudio, Enabled: false})
		}
		if !s.VideoEnabled {
			effects = append(effects, SetTrackEnabled{Kind: webrtc.RTPCodecTypeVideo, Enabled: false})
		}
		return s, effects

	case MediaFailed:
		s.Conn = StateFailed
		s.Status = e.Err.Error()
		return s, nil

	case SignalingConnected:
		s.SignalingConnected = true
		s.Conn = StateJoining
		return s, []Effect{JoinRoom{AppointmentID: s.AppointmentID, RoomID: s.RoomID}}

	case SignalingFailed:
		s.Conn = StateFailed
		s.Status = e.Err.Error()
		return s, nil

	case Joined:
		return joined(s, e)

	case JoinFailed:
		var full *signal.RoomFullError
		if errors.As(e.Err, &full) {
			return roomFull(s, full.Message)
		}
		s.Conn = StateFailed
		s.Status = e.Err.Error()
		return s, nil

	case RoomFull:
		return roomFull(s, e.Message)

	case LogStarted:
		s.LogID = e.ID
		return s, nil

	case PeerJoined:
		if s.Local == nil || s.self(e.Participant.ConnectionID) {
			return s, nil
		}
		s.Remote = participantFrom(e.Participant)
		s.Ready.ResetRemote()
		s.ParticipantCount = 2
		s.Conn = StateNegotiating
		s.Status = StatusNegotiating
		effects := replacePeer(&s)
		return s, append(effects, SendReady{})

	case PeerReady:
		if s.Local == nil || s.self(e.From) {
			return s, nil
		}
		s.Ready.MarkRemote()
		if s.Remote == nil || s.Remote.ConnectionID != e.From {
			s.Remote = &Participant{ConnectionID: e.From}
		}
		if s.ParticipantCount < 2 {
			s.ParticipantCount = 2
		}
		s.Conn = StateNegotiating
		s.Status = StatusNegotiating
		effects := replacePeer(&s)
		return s, append(effects, offer(s)...)

	case PeerLeft:
		return peerLeft(s, e)

	case RoleChanged:
		if s.Local == nil || s.Local.IsInitiator == e.IsInitiator {
			return s, nil
		}
		local := *s.Local
		local.IsInitiator = e.IsInitiator
		s.Local = &local
		if e.IsInitiator && s.Remote == nil {
			s.Status = StatusHost
		}
		effects := replacePeer(&s)
		return s, append(effects, offer(s)...)

	case RoomUpdate:
		s.ParticipantCount = e.Count
		return s, nil

	case RemoteOffer:
		if s.Local == nil || s.self(e.From) {
			return s, nil
		}
		if s.Remote == nil {
			s.Remote = &Participant{ConnectionID: e.From}
		}
		var effects []Effect
		if s.PeerGen == 0 || s.Conn == StateFailed {
			effects = replacePeer(&s)
		}
		if s.Conn != StateConnected {
			s.Conn = StateNegotiating
		}
		return s, append(effects, ApplyOffer{Gen: s.PeerGen, Description: e.Description})

	case RemoteAnswer:
		if s.self(e.From) || s.PeerGen == 0 {
			return s, nil
		}
		return s, []Effect{ApplyAnswer{Gen: s.PeerGen, Description: e.Description}}

	case RemoteCandidate:
		if s.self(e.From) || s.PeerGen == 0 {
			return s, nil
		}
		return s, []Effect{ApplyCandidate{Gen: s.PeerGen, Candidate: e.Candidate}}

	case LocalCandidate:
		if e.Gen != s.PeerGen {
			return s, nil
		}
		return s, []Effect{SendCandidate{Candidate: e.Candidate}}

	case RemoteTrack:
		if e.Gen != s.PeerGen {
			return s, nil
		}
		return s, []Effect{RenderTrack{Track: e.Track}}

	case Negotiated:
		if e.Gen != s.PeerGen || e.Err != nil || s.Conn == StateConnected {
			return s, nil
		}
		switch e.Outcome {
		case negotiation.OutcomeOfferSent:
			s.Status = StatusOfferSent
		case negotiation.OutcomeAnswered:
			s.Status = StatusAnswerSent
		}
		return s, nil

	case OfferYielded:
		if e.Gen != s.PeerGen || s.Local == nil {
			return s, nil
		}
		effects := replacePeer(&s)
		return s, append(effects, ApplyOffer{Gen: s.PeerGen, Description: e.Description})

	case TransportState:
		if e.Gen != s.PeerGen {
			return s, nil
		}
		return transport(s, e.State)

	case RetryFired:
		if e.Gen != s.PeerGen || !s.Ready.Both() {
			return s, nil
		}
		s.Conn = StateReconnecting
		s.Status = StatusReconnecting
		effects := replacePeer(&s)
		return s, append(effects, offer(s)...)

	case RetryExhausted:
		if e.Gen != s.PeerGen {
			return s, nil
		}
		s.Conn = StateFailed
		s.Status = StatusFailed
		return s, nil

	case ToggleTrack:
		switch e.Kind {
		case webrtc.RTPCodecTypeAudio:
			s.AudioEnabled = e.Enabled
		case webrtc.RTPCodecTypeVideo:
			s.VideoEnabled = e.Enabled
		default:
			return s, nil
		}
		return s, []Effect{SetTrackEnabled{Kind: e.Kind, Enabled: e.Enabled}}

	case Leave:
		return teardown(s, true)

	case Unmount, SignalingLost:
		return teardown(s, false)
	}
	return s, nil
}

func joined(s State, e Joined) (State, []Effect) {
	ack := e.Ack
	s.Local = &Participant{
		ConnectionID: ack.ConnectionID,
		UserID:       ack.UserID,
		Role:         ack.Role,
		IsInitiator:  ack.IsInitiator,
	}
	s.Remote = nil
	for _, p := range ack.Participants {
		if p.ConnectionID != ack.ConnectionID {
			s.Remote = participantFrom(p)
			break
		}
	}
	s.ParticipantCount = ack.ParticipantCount
	s.Ready.MarkLocal()

	if s.ParticipantCount <= 1 {
		s.Conn = StateWaitingForPeer
		s.Status = StatusWaiting
	} else {
		s.Conn = StateNegotiating
		s.Status = StatusNegotiating
	}

	effects := []Effect{
		ListenSignaling{},
		StartLog{AppointmentID: s.AppointmentID, RoomID: s.RoomID},
		SendReady{},
	}
	return s, append(effects, replacePeer(&s)...)
}

func peerLeft(s State, e PeerLeft) (State, []Effect) {
	if s.Local == nil || s.self(e.ConnectionID) {
		return s, nil
	}
	s.Remote = nil
	s.Ready.ResetRemote()
	s.ParticipantCount = max(e.Remaining, 1)
	s.Conn = StateWaitingForPeer
	s.Status = StatusWaiting
	if s.ParticipantCount == 1 && !s.Local.IsInitiator {
		local := *s.Local
		local.IsInitiator = true
		s.Local = &local
		s.Status = StatusHost
	}
	effects := []Effect{ClearRemoteMedia{}}
	return s, append(effects, replacePeer(&s)...)
}

func transport(s State, state webrtc.PeerConnectionState) (State, []Effect) {
	switch state {
	case webrtc.PeerConnectionStateConnected:
		s.Conn = StateConnected
		s.Status = StatusConnected
		return s, []Effect{ResetRetry{}}
	case webrtc.PeerConnectionStateDisconnected:
		s.Conn = StateDisconnected
		return s, nil
	case webrtc.PeerConnectionStateFailed:
		s.Conn = StateFailed
		s.Status = StatusReconnecting
		return s, []Effect{ScheduleRetry{Gen: s.PeerGen}}
	}
	return s, nil
}

func roomFull(s State, msg string) (State, []Effect) {
	if msg == "" {
		msg = StatusRoomFull
	}
	s, effects := teardown(s, false)
	s.Status = msg
	return s, append(effects, Navigate{Reason: NavigateRoomFull})
}

// teardown ends the session. The call log is closed first so it is sent
// while signaling and media are still being released.
func teardown(s State, navigate bool) (State, []Effect) {
	var effects []Effect
	if s.LogID != "" {
		effects = append(effects, EndLog{LogID: s.LogID})
	}
	effects = append(effects,
		ClosePeer{},
		ClearRemoteMedia{},
		ReleaseMedia{},
		DisconnectSignaling{},
	)
	if navigate {
		effects = append(effects, Navigate{Reason: NavigateLeave})
	}

	s.Conn = StateEnded
	s.Status = StatusEnded
	s.Local = nil
	s.Remote = nil
	s.ParticipantCount = 0
	s.PeerGen = 0
	s.Ready.Reset()
	s.SignalingConnected = false
	return s, effects
}

// afterEnd releases what late I/O results acquired after the session ended.
func afterEnd(ev Event) []Effect {
	switch e := ev.(type) {
	case MediaAcquired:
		return []Effect{ReleaseMedia{}}
	case SignalingConnected, Joined:
		return []Effect{DisconnectSignaling{}}
	case LogStarted:
		if e.ID != "" {
			return []Effect{EndLog{LogID: e.ID}}
		}
	}
	return nil
}

// replacePeer closes the live connection and opens the next generation.
func replacePeer(s *State) []Effect {
	s.LastGen++
	s.PeerGen = s.LastGen
	return []Effect{ClosePeer{}, CreatePeer{Gen: s.PeerGen, Polite: !s.Initiator()}}
}

// offer returns an Offer effect when the session-level gate is open.
func offer(s State) []Effect {
	g := s.Gate()
	if !g.Open() {
		return nil
	}
	return []Effect{Offer{Gen: s.PeerGen, Gate: g}}
}
