package server

import (
	"fmt"
	"net/http"
)

// handleClientJS serves the global splitkit browser helper.
func (s *Server) handleClientJS(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	// Determine server URL from request
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	serverURL := fmt.Sprintf("%s://%s", scheme, r.Host)

	script := GenerateClientScript(serverURL)

	w.Header().Set("Content-Type", "application/javascript")
	w.Header().Set("Cache-Control", "public, max-age=60")
	w.Write([]byte(script))
}

// GenerateClientScript generates the splitkit.js helper with the given
// server URL. It exposes window.splitkit with assign and track functions
// and keeps the session id in localStorage so assignments stay sticky.
func GenerateClientScript(serverURL string) string {
	return fmt.Sprintf(`(function(){
  var S='%s';

  // Get or create session id
  var sid=localStorage.getItem('sk_session');
  if(!sid){
    sid='session-'+Date.now()+'-'+Math.random().toString(36).slice(2,11);
    localStorage.setItem('sk_session',sid);
  }

  function assign(experimentId,productId){
    return fetch(S+'/api/experiments/'+experimentId+'/assign',{
      method:'POST',
      headers:{'Content-Type':'application/json'},
      body:JSON.stringify({sessionId:sid,productId:productId})
    }).then(function(res){
      if(!res.ok)throw new Error('assignment failed: '+res.status);
      return res.json();
    }).then(function(body){
      return body.variant;
    });
  }

  function track(experimentId,variantId,eventType,metadata){
    navigator.sendBeacon(S+'/api/experiments/track',JSON.stringify({
      sessionId:sid,
      experimentId:experimentId,
      variantId:variantId,
      eventType:eventType,
      metadata:metadata
    }));
  }

  window.splitkit={sessionId:sid,assign:assign,track:track};
})();`, serverURL)
}
