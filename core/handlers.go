package core

import (
	"context"

	"github.com/Dyastin-0/vortex/command"
	"github.com/Dyastin-0/vortex/types"
)

// register installs the handlers that turn content commands into sink
// events. They serve remote commands, local echoes and history replay alike.
func (p *Peer) register(r *Router) {
	r.Handle(command.ChatMsg, p.onChat)
	r.Handle(command.EditMsg, p.onChat)
	r.Handle(command.DeleteMsg, p.onChat)
	r.Handle(command.ClearChat, p.onChat)

	r.Handle(command.Draw, p.onDraw)
	r.Handle(command.Clear, p.onClear)

	r.Handle(command.AddToGallery, p.onGallery)
	r.Handle(command.DeleteFile, p.onGallery)
	r.Handle(command.ClearGallery, p.onGallery)
}

func (p *Peer) onChat(_ context.Context, cmd command.Command, from Origin) error {
	ev := types.ChatEvent{
		ID:       cmd.ID(),
		Own:      from == OriginLocal,
		Replayed: from == OriginHistory,
	}

	switch cmd.Verb {
	case command.ChatMsg:
		ev.Kind = types.ChatAdded
		ev.Sender = cmd.Sender()
		ev.Body = cmd.Body()
		if from == OriginHistory {
			ev.Own = ev.Sender == p.self.Name
		}
	case command.EditMsg:
		ev.Kind = types.ChatEdited
		ev.Body = cmd.Body()
	case command.DeleteMsg:
		ev.Kind = types.ChatDeleted
	case command.ClearChat:
		ev.Kind = types.ChatCleared
	}

	if from != OriginHistory {
		p.record(cmd)
	}

	p.opts.Sink.OnChat(ev)

	return nil
}

func (p *Peer) record(cmd command.Command) {
	var err error
	if cmd.Verb == command.ClearChat {
		err = p.opts.Recorder.Reset()
	} else {
		err = p.opts.Recorder.Record(cmd)
	}

	if err != nil {
		p.log.WithStr("verb", string(cmd.Verb)).WithErr(err).Warn("failed to record chat history")
	}
}

func (p *Peer) onDraw(_ context.Context, cmd command.Command, _ Origin) error {
	s, err := cmd.Stroke()
	if err != nil {
		return err
	}

	p.opts.Sink.OnDraw(s)

	return nil
}

func (p *Peer) onClear(context.Context, command.Command, Origin) error {
	p.opts.Sink.OnClear()
	return nil
}

func (p *Peer) onGallery(_ context.Context, cmd command.Command, _ Origin) error {
	ev := types.GalleryEvent{ID: cmd.ID()}

	switch cmd.Verb {
	case command.AddToGallery:
		ev.Kind = types.GalleryConfirmed
		ev.Name = cmd.Name()
	case command.DeleteFile:
		ev.Kind = types.GalleryDeleted
	case command.ClearGallery:
		ev.Kind = types.GalleryCleared
	}

	p.opts.Sink.OnGalleryChanged(ev)

	return nil
}
