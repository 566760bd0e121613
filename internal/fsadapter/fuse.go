package fsadapter

import (
	"context"
	"syscall"

	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"
)

// Root is the single directory this filesystem exposes. Its children are
// resolved on demand from the live Catalog via Lookup, never cached as a
// fixed inode tree, so a refresh is visible on the next lookup without
// any inode bookkeeping here.
type Root struct {
	fs.Inode
	a *Adapter
}

var (
	_ fs.NodeGetattrer = (*Root)(nil)
	_ fs.NodeLookuper  = (*Root)(nil)
	_ fs.NodeReaddirer = (*Root)(nil)
)

// NewRoot builds the root inode for a.
func NewRoot(a *Adapter) *Root {
	return &Root{a: a}
}

func (r *Root) Getattr(ctx context.Context, f fs.FileHandle, out *fuse.AttrOut) syscall.Errno {
	attr := GetattrRoot()
	fillAttrOut(attr, out)
	return 0
}

func (r *Root) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	attr, errno := r.a.Getattr(name)
	if errno != OK {
		return nil, toSyscall(errno)
	}
	fillEntryOut(attr, out)
	child := &LogFile{a: r.a, name: name}
	stable := fs.StableAttr{Mode: attr.Mode & syscall.S_IFMT}
	return r.NewInode(ctx, child, stable), 0
}

func (r *Root) Readdir(ctx context.Context) (fs.DirStream, syscall.Errno) {
	names := r.a.Readdir()
	entries := make([]fuse.DirEntry, 0, len(names))
	for _, n := range names {
		entries = append(entries, fuse.DirEntry{Name: n, Mode: fuse.S_IFREG})
	}
	return fs.NewListDirStream(entries), 0
}

// LogFile is a single virtual log (or the .refresh control file).
type LogFile struct {
	fs.Inode
	a    *Adapter
	name string
}

var (
	_ fs.NodeGetattrer = (*LogFile)(nil)
	_ fs.NodeOpener    = (*LogFile)(nil)
	_ fs.NodeReader    = (*LogFile)(nil)
	_ fs.NodeWriter    = (*LogFile)(nil)
)

func (f *LogFile) Getattr(ctx context.Context, fh fs.FileHandle, out *fuse.AttrOut) syscall.Errno {
	attr, errno := f.a.Getattr(f.name)
	if errno != OK {
		return toSyscall(errno)
	}
	fillAttrOut(attr, out)
	return 0
}

func (f *LogFile) Open(ctx context.Context, flags uint32) (fs.FileHandle, uint32, syscall.Errno) {
	return nil, 0, toSyscall(f.a.Open(f.name))
}

// Read always denies: nothing in this filesystem is readable.
func (f *LogFile) Read(ctx context.Context, fh fs.FileHandle, dest []byte, off int64) (fuse.ReadResult, syscall.Errno) {
	return nil, toSyscall(f.a.Read())
}

func (f *LogFile) Write(ctx context.Context, fh fs.FileHandle, data []byte, off int64) (uint32, syscall.Errno) {
	n, errno := f.a.Write(ctx, f.name, data)
	return uint32(n), toSyscall(errno)
}

func toSyscall(e Errno) syscall.Errno {
	switch e {
	case OK:
		return 0
	case ENOENT:
		return syscall.ENOENT
	case EACCES:
		return syscall.EACCES
	default:
		return syscall.EIO
	}
}

func fillAttrOut(a Attr, out *fuse.AttrOut) {
	out.Mode = a.Mode
	out.Nlink = a.Nlink
	out.Size = a.Size
	out.Uid = a.UID
	out.Gid = a.GID
}

func fillEntryOut(a Attr, out *fuse.EntryOut) {
	out.Mode = a.Mode
	out.Nlink = a.Nlink
	out.Size = a.Size
	out.Uid = a.UID
	out.Gid = a.GID
}

// Mount mounts root at mountpoint with opts (may be nil for defaults) and
// returns the running *fuse.Server. Callers unmount via server.Unmount()
// or by signaling the process with SIGINT/SIGTERM.
func Mount(mountpoint string, root *Root, opts *fs.Options) (*fuse.Server, error) {
	if opts == nil {
		opts = &fs.Options{}
	}
	server, err := fs.Mount(mountpoint, root, opts)
	if err != nil {
		return nil, err
	}
	return server, nil
}
