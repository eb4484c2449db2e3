package seqfile

import "sync"

// Registry shares SequentialFile instances by directory so that a producer
// and a consumer built separately end up on the same queue. The application
// owns the Registry and hands it to both sides. There is no reference
// counting: an instance stays registered until its Close is called.
type Registry struct {
	mu    sync.Mutex
	files map[string]*SequentialFile

	// Defaults is copied for every instance the registry creates. Dir and
	// Extension are overridden per call.
	Defaults Options
}

func NewRegistry() *Registry {
	return &Registry{
		files:    make(map[string]*SequentialFile),
		Defaults: *DefaultOptions(""),
	}
}

// GetOrCreate returns the instance for dir, creating and registering one if
// none exists. ext is only used when creating; a directory is assumed to
// hold a single extension.
func (r *Registry) GetOrCreate(dir string, ext ...string) (*SequentialFile, error) {
	key := normalizeDir(dir)

	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.files[key]; ok {
		return s, nil
	}

	opts := r.Defaults
	opts.Dir = key
	if len(ext) > 0 {
		opts.Extension = ext[0]
	}

	s, err := New(&opts)
	if err != nil {
		return nil, err
	}

	s.registry = r
	r.files[key] = s
	logger.Debugf("registered queue %s", key)
	return s, nil
}

// Lookup returns the registered instance for dir, if any.
func (r *Registry) Lookup(dir string) (*SequentialFile, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.files[normalizeDir(dir)]
	return s, ok
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.files)
}

func (r *Registry) remove(s *SequentialFile) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cur, ok := r.files[s.dir]; ok && cur == s {
		delete(r.files, s.dir)
		logger.Debugf("deregistered queue %s", s.dir)
	}
}
