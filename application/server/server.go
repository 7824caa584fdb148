package server

import (
	"github.com/keytrace/keytrace-go/application"
	"github.com/keytrace/keytrace-go/protocol"
	"github.com/keytrace/keytrace-go/protocol/directory"
	"github.com/keytrace/keytrace-go/storage/kv"
	"github.com/keytrace/keytrace-go/storage/kv/directorykv"
	"github.com/keytrace/keytrace-go/storage/kv/leveldbkv"
)

// An Address describes a server's connection.
// It makes the server connections configurable
// so that a key directory implementation can easily
// be run by a first-party service operator or
// behind a third-party account frontend.
//
// Allowing appends has to be specified explicitly for each connection.
// Other types of requests are allowed by default.
// One can think of an append as a "write" to the key directory,
// while the other request types are "reads".
// So, by default, addresses are "read-only".
type Address struct {
	*application.ServerAddress
	AllowAppend bool `toml:"allow_append,omitempty"`
}

// A Server represents a keytrace key directory server.
// It wraps a Directory with a network layer which
// handles requests/responses and their encoding/decoding, and
// persists every accepted append so a restarted server serves
// the same log.
// A Server also supports concurrent handling of requests and
// a mechanism to re-sign the directory's tree head automatically
// at regular time intervals.
type Server struct {
	*application.ServerBase
	dir       *directory.Directory
	db        kv.DB
	headTimer *application.HeadTimer
}

var _ application.Server = (*Server)(nil)

// NewServer creates a new keytrace key directory server from the
// given configuration. It opens the server's persistent storage and
// replays the stored log entries into the directory, so the rebuilt
// trees reproduce the heads the directory served before its restart.
func NewServer(conf *Config) (*Server, error) {
	// determine this server's request permissions
	perms := make(map[*application.ServerAddress]map[int]bool)

	for i := 0; i < len(conf.Addresses); i++ {
		addr := conf.Addresses[i]
		perms[addr.ServerAddress] = make(map[int]bool)
		perms[addr.ServerAddress][protocol.SearchType] = true
		perms[addr.ServerAddress][protocol.MonitorType] = true
		perms[addr.ServerAddress][protocol.AuditType] = true
		perms[addr.ServerAddress][protocol.AuditorHeadType] = true
		perms[addr.ServerAddress][protocol.AppendType] = addr.AllowAppend
	}

	// create server instance
	sb := application.NewServerBase(conf.CommonConfig, "Listen",
		perms)

	dir := directory.New(
		conf.Policies.vrfKey,
		conf.Policies.signKey,
		conf.Policies.auditorKey)
	db := leveldbkv.OpenDB(conf.DBPath)

	// replay the stored log
	entries, err := directorykv.LoadEntries(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	if err := dir.Restore(entries); err != nil {
		db.Close()
		return nil, err
	}
	if dir.Size() > 0 {
		sb.Logger().Info("Log restored", "size", dir.Size())
	}

	// re-feed the stored auditor head through its verification
	head, err := directorykv.LoadAuditorHead(db)
	switch err {
	case nil:
		if _, e := dir.SetAuditorHead(&protocol.AuditorHeadRequest{
			TreeHead: head,
		}); e != protocol.ReqSuccess {
			sb.Logger().Warn("Dropping the stored auditor head",
				"error", e)
		}
	case db.ErrNotFound():
	default:
		db.Close()
		return nil, err
	}

	server := &Server{
		ServerBase: sb,
		dir:        dir,
		db:         db,
		headTimer: application.NewHeadTimer(
			conf.Policies.HeadRefreshInterval),
	}

	return server, nil
}

// HeadRefresh runs a keytrace server's tree head refresh procedure.
func (server *Server) HeadRefresh() {
	server.ServerBase.HeadRefresh(server.headTimer, server.dir.Update)
}

// ConfigHotReload implements hot-reloading the configuration by
// listening for SIGUSR2 signal.
func (server *Server) ConfigHotReload() {
	server.HotReload(server.updatePolicies)
}

// HandleRequests validates the request message and passes it to the
// appropriate operation handler according to the request type.
func (server *Server) HandleRequests(req *protocol.Request) *protocol.Response {
	switch req.Type {
	case protocol.SearchType:
		if msg, ok := req.Request.(*protocol.SearchRequest); ok {
			res, _ := server.dir.Search(msg)
			return res
		}
	case protocol.MonitorType:
		if msg, ok := req.Request.(*protocol.MonitorRequest); ok {
			res, _ := server.dir.Monitor(msg)
			return res
		}
	case protocol.AppendType:
		if msg, ok := req.Request.(*protocol.AppendRequest); ok {
			return server.append(msg)
		}
	case protocol.AuditType:
		if msg, ok := req.Request.(*protocol.AuditRequest); ok {
			res, _ := server.dir.Audit(msg)
			return res
		}
	case protocol.AuditorHeadType:
		if msg, ok := req.Request.(*protocol.AuditorHeadRequest); ok {
			return server.setAuditorHead(msg)
		}
	}

	return protocol.NewErrorResponse(protocol.ErrMalformedMessage)
}

// Run implements the main functionality of the key directory server.
// It listens for all declared connections with corresponding
// permissions.
func (server *Server) Run(addrs []*Address) {
	server.RunInBackground(server.HeadRefresh)

	hasAppendPerm := false
	for i := 0; i < len(addrs); i++ {
		addr := addrs[i]
		hasAppendPerm = hasAppendPerm || addr.AllowAppend
		if addr.AllowAppend {
			server.Verb = "Accepting appends"
		}

		server.ListenAndHandle(addr.ServerAddress, server.HandleRequests)
	}

	if !hasAppendPerm {
		server.Logger().Warn("None of the addresses permit appends")
	}

	server.RunInBackground(server.ConfigHotReload)
}

// Shutdown closes all of the server's connections and its storage,
// and shuts down the server.
func (server *Server) Shutdown() error {
	if err := server.ServerBase.Shutdown(); err != nil {
		return err
	}
	return server.db.Close()
}

// append applies one append to the directory and persists the
// resulting entry. The entry write must not fail once the append is
// applied in memory: answering with an error instead would fork the
// stored log from the served one, and the next accepted append would
// leave a gap no restart can replay past. A failed write panics.
func (server *Server) append(req *protocol.AppendRequest) *protocol.Response {
	res, err := server.dir.Append(req)
	if err != protocol.ReqSuccess {
		return res
	}
	df := res.DirectoryResponse.(*protocol.AppendResponse)
	ent := &directory.StoredEntry{
		SearchKey: req.SearchKey,
		Value:     req.Value,
		Opening:   df.Opening,
	}
	if err := directorykv.StoreEntry(server.db, server.dir.Size()-1, ent); err != nil {
		panic(err)
	}
	return res
}

// setAuditorHead passes a pushed auditor head to the directory and
// persists it once verified. The head is served from memory either
// way; a failed write only costs the auditor a re-push after the
// server's next restart.
func (server *Server) setAuditorHead(req *protocol.AuditorHeadRequest) *protocol.Response {
	res, err := server.dir.SetAuditorHead(req)
	if err != protocol.ReqSuccess {
		return res
	}
	if err := directorykv.StoreAuditorHead(server.db, req.TreeHead); err != nil {
		server.Logger().Warn(err.Error())
	}
	return res
}

func (server *Server) updatePolicies() {
	// read server policies from config file
	conf := new(Config)
	if err := conf.Load(server.ConfigInfo()); err != nil {
		// error occurred while reading server config
		// simply abort the reloading policies process
		server.Logger().Error(err.Error())
		return
	}
	server.headTimer.SetInterval(conf.Policies.HeadRefreshInterval)
	server.Logger().Info("Policies reloaded!")
}
